package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CriterionKind tags an EligibilityRule. Rules of the same kind are
// alternatives; every kind present on an assessment must be satisfied.
type CriterionKind string

const (
	CriterionDepartment      CriterionKind = "department"
	CriterionGroup           CriterionKind = "group"
	CriterionPriorTraining   CriterionKind = "prior_training"
	CriterionPriorAssessment CriterionKind = "prior_assessment"
	CriterionSkill           CriterionKind = "skill"
)

// CriterionKinds lists every kind in evaluation order.
var CriterionKinds = []CriterionKind{
	CriterionDepartment,
	CriterionGroup,
	CriterionPriorTraining,
	CriterionPriorAssessment,
	CriterionSkill,
}

func (k CriterionKind) Valid() bool {
	for _, known := range CriterionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Describe is the phrase used in denial messages.
func (k CriterionKind) Describe() string {
	switch k {
	case CriterionDepartment:
		return "missing department membership"
	case CriterionGroup:
		return "missing group membership"
	case CriterionPriorTraining:
		return "prerequisite training not completed"
	case CriterionPriorAssessment:
		return "prerequisite assessment not completed"
	case CriterionSkill:
		return "skill score requirement not met"
	}
	return string(k)
}

type Comparator string

const (
	ComparatorGreaterThan Comparator = "greater_than"
	ComparatorLessThan    Comparator = "less_than"
)

// EligibilityRule is one configured criterion. TargetID is a department,
// group, training, assessment or skill id depending on Kind; other
// assessments are referenced by id only.
type EligibilityRule struct {
	Record
	AssessmentID uint            `gorm:"index;type:bigint unsigned" json:"assessmentId"`
	Kind         CriterionKind   `gorm:"size:30;not null" json:"kind"`
	TargetID     uint            `gorm:"type:bigint unsigned;not null" json:"targetId"`
	Comparator   Comparator      `gorm:"size:20" json:"comparator,omitempty"`
	Threshold    decimal.Decimal `gorm:"type:decimal(6,2);default:0" json:"threshold"` // Percentage, skill rules only
}

func (EligibilityRule) TableName() string {
	return "eligibility_rules"
}

func DepartmentRule(departmentID uint) EligibilityRule {
	return EligibilityRule{Kind: CriterionDepartment, TargetID: departmentID}
}

func GroupRule(groupID uint) EligibilityRule {
	return EligibilityRule{Kind: CriterionGroup, TargetID: groupID}
}

func PriorTrainingRule(trainingID uint) EligibilityRule {
	return EligibilityRule{Kind: CriterionPriorTraining, TargetID: trainingID}
}

func PriorAssessmentRule(assessmentID uint) EligibilityRule {
	return EligibilityRule{Kind: CriterionPriorAssessment, TargetID: assessmentID}
}

func SkillRule(skillID uint, cmp Comparator, threshold decimal.Decimal) EligibilityRule {
	return EligibilityRule{Kind: CriterionSkill, TargetID: skillID, Comparator: cmp, Threshold: threshold}
}

func (r EligibilityRule) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown criterion kind %q", r.Kind)
	}
	if r.TargetID == 0 {
		return errors.New("targetId is required")
	}
	if r.Kind != CriterionSkill {
		if r.Comparator != "" {
			return fmt.Errorf("comparator is only allowed on %s rules", CriterionSkill)
		}
		return nil
	}
	if r.Comparator != ComparatorGreaterThan && r.Comparator != ComparatorLessThan {
		return fmt.Errorf("unknown comparator %q", r.Comparator)
	}
	if r.Threshold.IsNegative() || r.Threshold.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("threshold must be a percentage between 0 and 100")
	}
	return nil
}
