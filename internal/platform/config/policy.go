package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type LeavePolicy struct {
	ApprovalLevels          int  `yaml:"approvalLevels"`
	AllowHalfDay            bool `yaml:"allowHalfDay"`
	AllowBackdated          bool `yaml:"allowBackdated"`
	BackdateLimitDays       int  `yaml:"backdateLimitDays"`
	AllowCancelPastApproved bool `yaml:"allowCancelPastApproved"`
}

type TimesheetPolicy struct {
	ApprovalLevels int     `yaml:"approvalLevels"`
	MaxHoursPerDay float64 `yaml:"maxHoursPerDay"`
}

// Policy holds the workflow knobs that operators tune per deployment.
type Policy struct {
	Leave     LeavePolicy     `yaml:"leave"`
	Timesheet TimesheetPolicy `yaml:"timesheet"`
}

func policyFromEnv() Policy {
	return Policy{
		Leave: LeavePolicy{
			ApprovalLevels:          getEnvInt("LEAVE_APPROVAL_LEVELS", 1),
			AllowHalfDay:            getEnvBool("LEAVE_ALLOW_HALF_DAY", true),
			AllowBackdated:          getEnvBool("LEAVE_ALLOW_BACKDATED", true),
			BackdateLimitDays:       getEnvInt("LEAVE_BACKDATE_LIMIT_DAYS", 30),
			AllowCancelPastApproved: getEnvBool("LEAVE_ALLOW_CANCEL_PAST_APPROVED", true),
		},
		Timesheet: TimesheetPolicy{
			ApprovalLevels: getEnvInt("TIMESHEET_APPROVAL_LEVELS", 1),
			MaxHoursPerDay: float64(getEnvInt("TIMESHEET_MAX_HOURS_PER_DAY", 8)),
		},
	}
}

// mergeFile overlays the YAML file on top of the env defaults. Keys absent
// from the file keep their current value.
func (p *Policy) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}
	return nil
}

func (p Policy) Validate() error {
	if p.Leave.ApprovalLevels != 1 && p.Leave.ApprovalLevels != 2 {
		return fmt.Errorf("leave approval levels must be 1 or 2, got %d", p.Leave.ApprovalLevels)
	}
	if p.Timesheet.ApprovalLevels != 1 && p.Timesheet.ApprovalLevels != 2 {
		return fmt.Errorf("timesheet approval levels must be 1 or 2, got %d", p.Timesheet.ApprovalLevels)
	}
	if p.Leave.BackdateLimitDays < 0 {
		return fmt.Errorf("leave backdate limit must not be negative")
	}
	if p.Timesheet.MaxHoursPerDay <= 0 || p.Timesheet.MaxHoursPerDay > 24 {
		return fmt.Errorf("timesheet max hours per day must be within (0, 24]")
	}
	return nil
}
