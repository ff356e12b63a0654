package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

// Tuning holds every knob of the organization simulation. Probabilities are
// per-tick Bernoulli chances in [0,1].
type Tuning struct {
	TickUnitMinutes int `yaml:"tick_unit_minutes"`

	Probabilities Probabilities `yaml:"probabilities"`

	// Capacity maps agent level to the number of direct children it may keep active.
	Capacity map[int]int `yaml:"capacity"`

	// TaskWeights biases task advance selection toward the end of the pipeline.
	TaskWeights map[string]int `yaml:"task_weights"`

	ActivationBonus        int64 `yaml:"activation_bonus"`
	PromotionBonusPerLevel int64 `yaml:"promotion_bonus_per_level"`
	PromotionMaxLevel      int   `yaml:"promotion_max_level"`
	SpawnMinParentLevel    int   `yaml:"spawn_min_parent_level"`
	WorkerMaxLevel         int   `yaml:"worker_max_level"`
	DespawnFloor           int   `yaml:"despawn_floor"`
	DespawnSuspendPermille int   `yaml:"despawn_suspend_permille"`

	Credits Credits `yaml:"credits"`

	TrustOnCompletion int `yaml:"trust_on_completion"`
	TrustOnPromotion  int `yaml:"trust_on_promotion"`

	BatchMin int `yaml:"batch_min"`
	BatchMax int `yaml:"batch_max"`
}

type Probabilities struct {
	AgentCreated       float64 `yaml:"agent_created"`
	AgentActivated     float64 `yaml:"agent_activated"`
	AgentPromoted      float64 `yaml:"agent_promoted"`
	AgentStatusChange  float64 `yaml:"agent_status_change"`
	AgentDespawned     float64 `yaml:"agent_despawned"`
	TaskCreated        float64 `yaml:"task_created"`
	TaskStatusChange   float64 `yaml:"task_status_change"`
	TaskBatchAdvance   float64 `yaml:"task_batch_advance"`
	TaskCancelled      float64 `yaml:"task_cancelled"`
	CreditEarned       float64 `yaml:"credit_earned"`
	CreditSpent        float64 `yaml:"credit_spent"`
	MessageSent        float64 `yaml:"message_sent"`
	MessageBurst       float64 `yaml:"message_burst"`
	MessageTaskRelated float64 `yaml:"message_task_related"`
}

type Credits struct {
	EarnMin        int64 `yaml:"earn_min"`
	EarnMax        int64 `yaml:"earn_max"`
	SpendMin       int64 `yaml:"spend_min"`
	SpendMax       int64 `yaml:"spend_max"`
	SpendThreshold int64 `yaml:"spend_threshold"`
}

func Defaults() Tuning {
	return Tuning{
		TickUnitMinutes: 60,
		Probabilities: Probabilities{
			AgentCreated:       0.12,
			AgentActivated:     0.35,
			AgentPromoted:      0.05,
			AgentStatusChange:  0.03,
			AgentDespawned:     0.04,
			TaskCreated:        0.18,
			TaskStatusChange:   0.45,
			TaskBatchAdvance:   0.20,
			TaskCancelled:      0.02,
			CreditEarned:       0.15,
			CreditSpent:        0.18,
			MessageSent:        0.40,
			MessageBurst:       0.15,
			MessageTaskRelated: 0.40,
		},
		Capacity: model.DefaultCapacityTable(),
		TaskWeights: map[string]int{
			"backlog":     1,
			"pending":     2,
			"assigned":    3,
			"in_progress": 4,
			"review":      6,
		},
		ActivationBonus:        50,
		PromotionBonusPerLevel: 100,
		PromotionMaxLevel:      9,
		SpawnMinParentLevel:    7,
		WorkerMaxLevel:         6,
		DespawnFloor:           2,
		DespawnSuspendPermille: 700,
		Credits: Credits{
			EarnMin:        20,
			EarnMax:        99,
			SpendMin:       5,
			SpendMax:       44,
			SpendThreshold: 50,
		},
		TrustOnCompletion: 5,
		TrustOnPromotion:  5,
		BatchMin:          2,
		BatchMax:          4,
	}
}

// Load reads a YAML tuning file. Keys missing from the file keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	probs := []struct {
		name string
		p    float64
	}{
		{"agent_created", t.Probabilities.AgentCreated},
		{"agent_activated", t.Probabilities.AgentActivated},
		{"agent_promoted", t.Probabilities.AgentPromoted},
		{"agent_status_change", t.Probabilities.AgentStatusChange},
		{"agent_despawned", t.Probabilities.AgentDespawned},
		{"task_created", t.Probabilities.TaskCreated},
		{"task_status_change", t.Probabilities.TaskStatusChange},
		{"task_batch_advance", t.Probabilities.TaskBatchAdvance},
		{"task_cancelled", t.Probabilities.TaskCancelled},
		{"credit_earned", t.Probabilities.CreditEarned},
		{"credit_spent", t.Probabilities.CreditSpent},
		{"message_sent", t.Probabilities.MessageSent},
		{"message_burst", t.Probabilities.MessageBurst},
		{"message_task_related", t.Probabilities.MessageTaskRelated},
	}
	for _, pr := range probs {
		if pr.p < 0 || pr.p > 1 {
			return fmt.Errorf("probabilities.%s=%v out of range [0,1]", pr.name, pr.p)
		}
	}
	levels := []struct {
		name  string
		level int
	}{
		{"promotion_max_level", t.PromotionMaxLevel},
		{"spawn_min_parent_level", t.SpawnMinParentLevel},
		{"worker_max_level", t.WorkerMaxLevel},
	}
	for _, l := range levels {
		if l.level < model.MinLevel || l.level > model.MaxLevel {
			return fmt.Errorf("%s=%d out of range [%d,%d]", l.name, l.level, model.MinLevel, model.MaxLevel)
		}
	}
	if t.TickUnitMinutes <= 0 {
		return fmt.Errorf("tick_unit_minutes must be positive")
	}
	if t.Credits.EarnMin <= 0 || t.Credits.EarnMax < t.Credits.EarnMin {
		return fmt.Errorf("credits.earn range [%d,%d] invalid", t.Credits.EarnMin, t.Credits.EarnMax)
	}
	if t.Credits.SpendMin <= 0 || t.Credits.SpendMax < t.Credits.SpendMin {
		return fmt.Errorf("credits.spend range [%d,%d] invalid", t.Credits.SpendMin, t.Credits.SpendMax)
	}
	if t.BatchMin <= 0 || t.BatchMax < t.BatchMin {
		return fmt.Errorf("batch range [%d,%d] invalid", t.BatchMin, t.BatchMax)
	}
	if t.DespawnFloor < 0 {
		return fmt.Errorf("despawn_floor must not be negative")
	}
	if t.DespawnSuspendPermille < 0 || t.DespawnSuspendPermille > 1000 {
		return fmt.Errorf("despawn_suspend_permille=%d out of range [0,1000]", t.DespawnSuspendPermille)
	}
	for lvl, c := range t.Capacity {
		if lvl < model.MinLevel || lvl > model.MaxLevel || c < 0 {
			return fmt.Errorf("capacity[%d]=%d invalid", lvl, c)
		}
	}
	return nil
}
