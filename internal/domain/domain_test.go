package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValueOr(t *testing.T) {
	one, two := 1, 2
	assert.Equal(t, 7, ValueOr(7))
	assert.Equal(t, 7, ValueOr[int](7, nil, nil))
	assert.Equal(t, 1, ValueOr(7, nil, &one, &two))
	assert.False(t, ValueOr(false, (*bool)(nil)))
}

func TestHardFilters_IsEmpty(t *testing.T) {
	no := false
	yes := true
	zero := 0.0

	assert.True(t, HardFilters{}.IsEmpty())
	assert.True(t, HardFilters{ExcludeChildren: &no, FreeOnly: &no}.IsEmpty(), "false toggles apply no constraint")
	assert.True(t, HardFilters{ChildrenKeywords: []string{"enfant"}}.IsEmpty(), "keywords alone are not a rule")
	assert.False(t, HardFilters{FreeOnly: &yes}.IsEmpty())
	assert.False(t, HardFilters{MaxPrice: &zero}.IsEmpty())
	assert.False(t, HardFilters{AudienceAllow: []string{"Adultes"}}.IsEmpty())
}

func TestBoroughOrder_ReturnsCopy(t *testing.T) {
	p := Preferences{HardFilters: HardFilters{BoroughAllow: []string{"Verdun", "Outremont"}}}

	order := p.BoroughOrder()
	order[0] = "changed"

	assert.Equal(t, "Verdun", p.HardFilters.BoroughAllow[0])
	assert.Nil(t, Preferences{}.BoroughOrder())
}

func TestRun_Duration(t *testing.T) {
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, 3*time.Second, Run{StartedAt: start, FinishedAt: start.Add(3 * time.Second)}.Duration())
	assert.Zero(t, Run{StartedAt: start, FinishedAt: start.Add(-time.Second)}.Duration())
}
