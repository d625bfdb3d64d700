package service

import "github.com/noah-isme/sat-lms-api/internal/models"

// AccessRule identifies which precedence rule decided a class's
// accessibility.
type AccessRule string

// Rules in precedence order, highest first.
const (
	RuleOverrideLock   AccessRule = "OVERRIDE_LOCK"
	RuleOverrideUnlock AccessRule = "OVERRIDE_UNLOCK"
	RulePreview        AccessRule = "PREVIEW"
	RuleGlobalFlag     AccessRule = "GLOBAL_FLAG"
)

// AccessDecision is the outcome of resolving a class's effective lock state
// for one student.
type AccessDecision struct {
	Locked bool       `json:"locked"`
	Rule   AccessRule `json:"rule"`
}

// ResolveClassAccess computes the effective accessibility of a class for a
// student. Precedence, highest first: an explicit per-student lock override
// locks the class, an explicit unlock override unlocks it. Only when no
// override exists does the inherit path apply: preview classes are open,
// everything else follows the class's global lock flag. Overrides are
// consulted before the preview bypass, so a per-student lock also closes a
// preview class.
//
// The function is pure; callers must separately deny access-blocked
// enrollments before consulting it.
func ResolveClassAccess(class *models.ClassRecord, override *models.ClassOverride) AccessDecision {
	if override != nil {
		switch override.State {
		case models.OverrideLocked:
			return AccessDecision{Locked: true, Rule: RuleOverrideLock}
		case models.OverrideUnlocked:
			return AccessDecision{Locked: false, Rule: RuleOverrideUnlock}
		}
	}
	if class.IsPreview {
		return AccessDecision{Locked: false, Rule: RulePreview}
	}
	return AccessDecision{Locked: class.IsLocked, Rule: RuleGlobalFlag}
}
