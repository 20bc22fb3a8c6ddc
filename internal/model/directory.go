package model

import "github.com/shopspring/decimal"

// Read-only projections of the organisation directory. They are populated by
// the HR/training systems and only read here.

type UserDepartment struct {
	UserID       uint `gorm:"primaryKey;type:bigint unsigned" json:"userId"`
	DepartmentID uint `gorm:"primaryKey;type:bigint unsigned" json:"departmentId"`
}

func (UserDepartment) TableName() string {
	return "user_departments"
}

type UserGroup struct {
	UserID  uint `gorm:"primaryKey;type:bigint unsigned" json:"userId"`
	GroupID uint `gorm:"primaryKey;type:bigint unsigned" json:"groupId"`
}

func (UserGroup) TableName() string {
	return "user_groups"
}

type UserSkillScore struct {
	UserID  uint            `gorm:"primaryKey;type:bigint unsigned" json:"userId"`
	SkillID uint            `gorm:"primaryKey;type:bigint unsigned" json:"skillId"`
	Score   decimal.Decimal `gorm:"type:decimal(6,2)" json:"score"` // Percentage
}

func (UserSkillScore) TableName() string {
	return "user_skill_scores"
}

type CompletionKind string

const (
	CompletionTraining   CompletionKind = "training"
	CompletionAssessment CompletionKind = "assessment"
)

type UserCompletion struct {
	UserID   uint           `gorm:"primaryKey;type:bigint unsigned" json:"userId"`
	Kind     CompletionKind `gorm:"primaryKey;size:20" json:"kind"`
	TargetID uint           `gorm:"primaryKey;type:bigint unsigned" json:"targetId"`
}

func (UserCompletion) TableName() string {
	return "user_completions"
}

// Memberships is what the directory knows about a user's organisation units.
type Memberships struct {
	DepartmentIDs []uint `json:"departmentIds"`
	GroupIDs      []uint `json:"groupIds"`
}

// Completions lists finished trainings and assessments.
type Completions struct {
	TrainingIDs   []uint `json:"trainingIds"`
	AssessmentIDs []uint `json:"assessmentIds"`
}
