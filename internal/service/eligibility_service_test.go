package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directoryFixture() *repository.MemoryStore {
	store := repository.NewMemoryStore()
	// user 1: engineering (10), platform group (20), skill 5 at 72.5, finished training 30
	store.AddDepartment(1, 10)
	store.AddGroup(1, 20)
	store.SetSkillScore(1, 5, decimal.RequireFromString("72.5"))
	store.AddCompletion(1, model.CompletionTraining, 30)
	store.AddCompletion(1, model.CompletionAssessment, 40)
	// user 2 has nothing
	return store
}

func TestEvaluateZeroRulesIsOpenToAll(t *testing.T) {
	e := NewEligibilityEvaluator(directoryFixture())
	for _, user := range []uint{1, 2, 99} {
		v, err := e.Evaluate(context.Background(), nil, user)
		require.NoError(t, err)
		assert.True(t, v.Eligible)
		assert.Empty(t, v.Unsatisfied)
	}
}

func TestEvaluateEachKind(t *testing.T) {
	e := NewEligibilityEvaluator(directoryFixture())
	ctx := context.Background()

	cases := []struct {
		name string
		rule model.EligibilityRule
		user uint
		want bool
	}{
		{"department member", model.DepartmentRule(10), 1, true},
		{"department outsider", model.DepartmentRule(11), 1, false},
		{"group member", model.GroupRule(20), 1, true},
		{"group outsider", model.GroupRule(20), 2, false},
		{"training done", model.PriorTrainingRule(30), 1, true},
		{"training missing", model.PriorTrainingRule(31), 1, false},
		{"assessment done", model.PriorAssessmentRule(40), 1, true},
		{"assessment missing", model.PriorAssessmentRule(40), 2, false},
		{"skill above", model.SkillRule(5, model.ComparatorGreaterThan, decimal.NewFromInt(70)), 1, true},
		{"skill equal is not greater", model.SkillRule(5, model.ComparatorGreaterThan, decimal.RequireFromString("72.5")), 1, false},
		{"skill below", model.SkillRule(5, model.ComparatorLessThan, decimal.NewFromInt(80)), 1, true},
		{"missing skill counts as zero for less than", model.SkillRule(6, model.ComparatorLessThan, decimal.NewFromInt(10)), 1, true},
		{"missing skill counts as zero for greater than", model.SkillRule(6, model.ComparatorGreaterThan, decimal.Zero), 1, false},
		{"unknown kind never matches", model.EligibilityRule{Kind: "badge", TargetID: 1}, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := e.Evaluate(ctx, []model.EligibilityRule{tc.rule}, tc.user)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Eligible)
			if !tc.want {
				assert.Equal(t, []model.CriterionKind{tc.rule.Kind}, v.Unsatisfied)
			}
		})
	}
}

func TestEvaluateOrWithinKindAndAcrossKinds(t *testing.T) {
	e := NewEligibilityEvaluator(directoryFixture())
	ctx := context.Background()

	// any listed department is enough
	v, err := e.Evaluate(ctx, []model.EligibilityRule{model.DepartmentRule(11), model.DepartmentRule(10)}, 1)
	require.NoError(t, err)
	assert.True(t, v.Eligible)

	// a skill score cannot stand in for a department
	v, err = e.Evaluate(ctx, []model.EligibilityRule{
		model.DepartmentRule(11),
		model.SkillRule(5, model.ComparatorGreaterThan, decimal.NewFromInt(50)),
	}, 1)
	require.NoError(t, err)
	assert.False(t, v.Eligible)
	assert.Equal(t, []model.CriterionKind{model.CriterionDepartment}, v.Unsatisfied)

	// unsatisfied kinds are reported in a stable order
	v, err = e.Evaluate(ctx, []model.EligibilityRule{
		model.SkillRule(5, model.ComparatorGreaterThan, decimal.NewFromInt(50)),
		model.PriorTrainingRule(30),
		model.GroupRule(20),
		model.DepartmentRule(10),
	}, 2)
	require.NoError(t, err)
	assert.False(t, v.Eligible)
	assert.Equal(t, []model.CriterionKind{
		model.CriterionDepartment,
		model.CriterionGroup,
		model.CriterionPriorTraining,
		model.CriterionSkill,
	}, v.Unsatisfied)
}

func TestEvaluateAddingKindNeverWidens(t *testing.T) {
	e := NewEligibilityEvaluator(directoryFixture())
	ctx := context.Background()

	pool := []model.EligibilityRule{
		model.DepartmentRule(10), model.DepartmentRule(11),
		model.GroupRule(20), model.GroupRule(21),
		model.PriorTrainingRule(30), model.PriorTrainingRule(31),
		model.PriorAssessmentRule(40), model.PriorAssessmentRule(41),
		model.SkillRule(5, model.ComparatorGreaterThan, decimal.NewFromInt(70)),
		model.SkillRule(5, model.ComparatorLessThan, decimal.NewFromInt(70)),
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 300; i++ {
		var rules []model.EligibilityRule
		present := map[model.CriterionKind]bool{}
		for _, r := range pool {
			if rng.Intn(3) == 0 {
				rules = append(rules, r)
				present[r.Kind] = true
			}
		}
		extra := pool[rng.Intn(len(pool))]
		if present[extra.Kind] {
			continue
		}
		for _, user := range []uint{1, 2} {
			before, err := e.Evaluate(ctx, rules, user)
			require.NoError(t, err)
			after, err := e.Evaluate(ctx, append(append([]model.EligibilityRule{}, rules...), extra), user)
			require.NoError(t, err)
			if after.Eligible {
				assert.True(t, before.Eligible, "rules %v plus %v widened eligibility for user %d", rules, extra, user)
			}
		}
	}
}

type failingDirectory struct {
	*repository.MemoryStore
}

func (failingDirectory) GetUserMemberships(context.Context, uint) (model.Memberships, error) {
	return model.Memberships{}, errors.New("directory unavailable")
}

func TestEvaluatePropagatesDirectoryErrors(t *testing.T) {
	e := NewEligibilityEvaluator(failingDirectory{repository.NewMemoryStore()})
	_, err := e.Evaluate(context.Background(), []model.EligibilityRule{model.DepartmentRule(1)}, 1)
	assert.ErrorContains(t, err, "directory unavailable")

	// kinds that do not need memberships are unaffected
	v, err := e.Evaluate(context.Background(), []model.EligibilityRule{model.PriorTrainingRule(1)}, 1)
	require.NoError(t, err)
	assert.False(t, v.Eligible)
}
