package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sat-lms-api/internal/models"
)

func TestResolveClassAccess(t *testing.T) {
	lockOverride := &models.ClassOverride{State: models.OverrideLocked}
	unlockOverride := &models.ClassOverride{State: models.OverrideUnlocked}

	tests := []struct {
		name     string
		class    models.ClassRecord
		override *models.ClassOverride
		locked   bool
		rule     AccessRule
	}{
		{
			name:   "globally unlocked without override",
			class:  models.ClassRecord{IsLocked: false},
			locked: false,
			rule:   RuleGlobalFlag,
		},
		{
			name:   "globally locked without override",
			class:  models.ClassRecord{IsLocked: true},
			locked: true,
			rule:   RuleGlobalFlag,
		},
		{
			name:     "unlock override beats global lock",
			class:    models.ClassRecord{IsLocked: true},
			override: unlockOverride,
			locked:   false,
			rule:     RuleOverrideUnlock,
		},
		{
			name:     "lock override beats global unlock",
			class:    models.ClassRecord{IsLocked: false},
			override: lockOverride,
			locked:   true,
			rule:     RuleOverrideLock,
		},
		{
			name:   "preview bypasses global lock",
			class:  models.ClassRecord{IsLocked: true, IsPreview: true},
			locked: false,
			rule:   RulePreview,
		},
		{
			name:     "lock override beats preview",
			class:    models.ClassRecord{IsLocked: false, IsPreview: true},
			override: lockOverride,
			locked:   true,
			rule:     RuleOverrideLock,
		},
		{
			name:     "unlock override on preview stays unlocked",
			class:    models.ClassRecord{IsLocked: true, IsPreview: true},
			override: unlockOverride,
			locked:   false,
			rule:     RuleOverrideUnlock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := ResolveClassAccess(&tt.class, tt.override)
			assert.Equal(t, tt.locked, decision.Locked)
			assert.Equal(t, tt.rule, decision.Rule)
		})
	}
}
