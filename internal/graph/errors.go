package graph

import (
	"errors"
	"fmt"

	"mediaflow/internal/services"
)

// Reason classifies a ConfigError.
type Reason string

const (
	ReasonMissingDiscovery  Reason = "missing_discovery_node"
	ReasonMultipleDiscovery Reason = "multiple_discovery_nodes"
	ReasonUnknownNode       Reason = "unknown_node"
	ReasonCycle             Reason = "cycle"
	ReasonBranch            Reason = "branch"
	ReasonUnknownStageType  Reason = "unknown_stage_type"
	ReasonInvalidConfig     Reason = "invalid_config"
	ReasonInvalidDefinition Reason = "invalid_definition"
)

// ConfigError reports a workflow definition that cannot be executed.
type ConfigError struct {
	Reason  Reason
	NodeID  string
	Message string
}

func newConfigError(reason Reason, nodeID, message string) *ConfigError {
	return &ConfigError{Reason: reason, NodeID: nodeID, Message: message}
}

// NewConfigError builds a ConfigError for checks performed outside the resolver.
func NewConfigError(reason Reason, nodeID, message string) *ConfigError {
	return newConfigError(reason, nodeID, message)
}

func (e *ConfigError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("invalid workflow (%s, node %s): %s", e.Reason, e.NodeID, e.Message)
	}
	return fmt.Sprintf("invalid workflow (%s): %s", e.Reason, e.Message)
}

// Is makes ConfigError match services.ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == services.ErrConfiguration
}

// ReasonOf returns the ConfigError reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Reason, true
	}
	return "", false
}
