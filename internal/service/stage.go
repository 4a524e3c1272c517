package service

import (
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
)

// StageEvidence 各阶段完成与否的外部证据
// 阶段推进由证据推断而非单一指针，各子系统（选料、机器操作、废料提交）可乱序回调
type StageEvidence struct {
	ActiveConsumptions    int64 `json:"active_consumptions"`
	MachineStepsTotal     int64 `json:"machine_steps_total"`
	MachineStepsCompleted int64 `json:"machine_steps_completed"`
	WastageSubmitted      bool  `json:"wastage_submitted"`
	OutputUnits           int64 `json:"output_units"`
}

// StageSnapshot 四阶段状态快照
type StageSnapshot struct {
	Planning entity.BatchStage `json:"planning_stage"`
	Machine  entity.BatchStage `json:"machine_stage"`
	Wastage  entity.BatchStage `json:"wastage_stage"`
	Final    entity.BatchStage `json:"final_stage"`
}

// InferStages 纯函数：根据证据推断阶段状态
// 幂等且单调——标记只向前推，已完成的阶段不会回退；
// 后段有证据时前段一并补齐（下游证据蕴含上游必已完成）
func InferStages(current StageSnapshot, ev StageEvidence, now time.Time, actor string) StageSnapshot {
	done := [4]bool{
		ev.ActiveConsumptions > 0,
		ev.MachineStepsTotal > 0 && ev.MachineStepsCompleted >= ev.MachineStepsTotal,
		ev.WastageSubmitted,
		ev.OutputUnits > 0,
	}
	// 前向补齐
	for i := 3; i > 0; i-- {
		if done[i] {
			for j := 0; j < i; j++ {
				done[j] = true
			}
			break
		}
	}

	stages := [4]*entity.BatchStage{&current.Planning, &current.Machine, &current.Wastage, &current.Final}
	for i, stage := range stages {
		if stage.Completed() {
			continue // 不回退
		}
		if done[i] {
			stage.Status = entity.StageStatusCompleted
			if stage.StartedAt == nil {
				stage.StartedAt = &now
				stage.StartedBy = actor
			}
			if stage.CompletedAt == nil {
				stage.CompletedAt = &now
				stage.CompletedBy = actor
			}
		}
	}

	// 第一个未完成且前置已完成的阶段进入 in_progress
	for i, stage := range stages {
		if stage.Completed() {
			continue
		}
		if i == 0 || stages[i-1].Completed() {
			if stage.Status == entity.StageStatusPending {
				stage.Status = entity.StageStatusInProgress
				if stage.StartedAt == nil {
					stage.StartedAt = &now
					stage.StartedBy = actor
				}
			}
		}
		break
	}
	return current
}

// CurrentStage 当前进行中的阶段名；全部完成时返回 final
func CurrentStage(s StageSnapshot) string {
	switch {
	case !s.Planning.Completed():
		return entity.StagePlanning
	case !s.Machine.Completed():
		return entity.StageMachine
	case !s.Wastage.Completed():
		return entity.StageWastage
	default:
		return entity.StageFinal
	}
}
