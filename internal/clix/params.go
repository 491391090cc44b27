package clix

import (
	"fmt"

	"github.com/spf13/pflag"

	"munin/internal/models"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseTrigger reads the --trigger flag, defaulting to a manual run.
func ParseTrigger(flags *pflag.FlagSet) (string, error) {
	trigger, _ := flags.GetString("trigger")
	if trigger == "" {
		trigger = models.TriggerManual
	}
	if !models.ValidTrigger(trigger) {
		return "", fmt.Errorf("unknown trigger kind %q (valid: %s, %s, %s)",
			trigger, models.TriggerSchedule, models.TriggerManual, models.TriggerPush)
	}
	return trigger, nil
}
