package scheduler

import (
	"fmt"

	"github.com/blues/fundgate/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

// NewManager 创建任务管理器
func NewManager(jobs ...Job) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Manager{scheduler: s, jobs: jobs}, nil
}

// Start 注册所有任务并启动调度器
func (m *Manager) Start() error {
	for _, job := range m.jobs {
		if err := m.register(job); err != nil {
			return err
		}
	}
	m.scheduler.Start()
	logger.Info("Task manager started with %d jobs", len(m.jobs))
	return nil
}

// register 注册任务，上一次未执行完时顺延
func (m *Manager) register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.GetName(), err)
	}
	logger.Info("Registered job %s", job.GetName())
	return nil
}

// Jobs 已注册的任务名
func (m *Manager) Jobs() []string {
	names := make([]string, 0, len(m.scheduler.Jobs()))
	for _, j := range m.scheduler.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
