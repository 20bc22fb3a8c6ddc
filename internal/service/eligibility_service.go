package service

import (
	"context"
	"fmt"

	"assessment_engine_backend/internal/model"

	"github.com/shopspring/decimal"
)

// Verdict 资格判定结果，Unsatisfied 按判定顺序列出未满足的条件类型
type Verdict struct {
	Eligible    bool                  `json:"eligible"`
	Unsatisfied []model.CriterionKind `json:"unsatisfied,omitempty"`
}

// EligibilityEvaluator 判定用户是否满足测评的资格规则。
// 同类规则之间为“或”，不同类规则之间为“与”；没有规则时所有人都可参加。
// 只读目录数据，不修改任何状态，可并发调用。
type EligibilityEvaluator struct {
	Directory DirectoryReader
}

func NewEligibilityEvaluator(directory DirectoryReader) *EligibilityEvaluator {
	return &EligibilityEvaluator{Directory: directory}
}

// userFacts 单次判定内按需加载的目录数据
type userFacts struct {
	ctx    context.Context
	dir    DirectoryReader
	userID uint

	memberships *model.Memberships
	completions *model.Completions
	skills      map[uint]decimal.Decimal
}

func (f *userFacts) loadMemberships() (*model.Memberships, error) {
	if f.memberships == nil {
		m, err := f.dir.GetUserMemberships(f.ctx, f.userID)
		if err != nil {
			return nil, fmt.Errorf("get memberships: %w", err)
		}
		f.memberships = &m
	}
	return f.memberships, nil
}

func (f *userFacts) loadCompletions() (*model.Completions, error) {
	if f.completions == nil {
		c, err := f.dir.GetCompletedIds(f.ctx, f.userID)
		if err != nil {
			return nil, fmt.Errorf("get completions: %w", err)
		}
		f.completions = &c
	}
	return f.completions, nil
}

// skillScore 没有成绩的技能按 0 处理
func (f *userFacts) skillScore(skillID uint) (decimal.Decimal, error) {
	if score, ok := f.skills[skillID]; ok {
		return score, nil
	}
	score, ok, err := f.dir.GetSkillScore(f.ctx, f.userID, skillID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get skill score %d: %w", skillID, err)
	}
	if !ok {
		score = decimal.Zero
	}
	f.skills[skillID] = score
	return score, nil
}

func (e *EligibilityEvaluator) Evaluate(ctx context.Context, rules []model.EligibilityRule, userID uint) (Verdict, error) {
	if len(rules) == 0 {
		return Verdict{Eligible: true}, nil
	}

	groups := make(map[model.CriterionKind][]model.EligibilityRule)
	order := make([]model.CriterionKind, 0, len(model.CriterionKinds))
	for _, r := range rules {
		if _, seen := groups[r.Kind]; !seen {
			order = append(order, r.Kind)
		}
		groups[r.Kind] = append(groups[r.Kind], r)
	}
	order = sortKinds(order)

	facts := &userFacts{ctx: ctx, dir: e.Directory, userID: userID, skills: make(map[uint]decimal.Decimal)}
	verdict := Verdict{Eligible: true}
	for _, kind := range order {
		ok, err := e.anySatisfied(facts, groups[kind])
		if err != nil {
			return Verdict{}, err
		}
		if !ok {
			verdict.Eligible = false
			verdict.Unsatisfied = append(verdict.Unsatisfied, kind)
		}
	}
	return verdict, nil
}

func (e *EligibilityEvaluator) anySatisfied(f *userFacts, rules []model.EligibilityRule) (bool, error) {
	for _, r := range rules {
		ok, err := e.satisfied(f, r)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *EligibilityEvaluator) satisfied(f *userFacts, r model.EligibilityRule) (bool, error) {
	switch r.Kind {
	case model.CriterionDepartment:
		m, err := f.loadMemberships()
		if err != nil {
			return false, err
		}
		return containsID(m.DepartmentIDs, r.TargetID), nil
	case model.CriterionGroup:
		m, err := f.loadMemberships()
		if err != nil {
			return false, err
		}
		return containsID(m.GroupIDs, r.TargetID), nil
	case model.CriterionPriorTraining:
		c, err := f.loadCompletions()
		if err != nil {
			return false, err
		}
		return containsID(c.TrainingIDs, r.TargetID), nil
	case model.CriterionPriorAssessment:
		c, err := f.loadCompletions()
		if err != nil {
			return false, err
		}
		return containsID(c.AssessmentIDs, r.TargetID), nil
	case model.CriterionSkill:
		score, err := f.skillScore(r.TargetID)
		if err != nil {
			return false, err
		}
		switch r.Comparator {
		case model.ComparatorGreaterThan:
			return score.GreaterThan(r.Threshold), nil
		case model.ComparatorLessThan:
			return score.LessThan(r.Threshold), nil
		}
		return false, nil
	}
	// 未知类型的规则不可满足
	return false, nil
}

// sortKinds 已知类型按 CriterionKinds 顺序排列，未知类型排在最后
func sortKinds(kinds []model.CriterionKind) []model.CriterionKind {
	present := make(map[model.CriterionKind]bool, len(kinds))
	for _, k := range kinds {
		present[k] = true
	}
	out := make([]model.CriterionKind, 0, len(kinds))
	for _, k := range model.CriterionKinds {
		if present[k] {
			out = append(out, k)
			delete(present, k)
		}
	}
	for _, k := range kinds {
		if present[k] {
			out = append(out, k)
		}
	}
	return out
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
