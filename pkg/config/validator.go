package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError is one invalid configuration value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidProviders lists the accepted llm.provider values. Empty means infer from the model.
func ValidProviders() []string {
	return []string{"", ProviderScripted, ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOllama}
}

// ValidBackends lists the accepted persistence.backend values.
func ValidBackends() []string {
	return []string{BackendNone, BackendSQLite, BackendRedis}
}

// Validate returns every invalid value. A nil result means the config is usable.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.MailboxSize < 1 {
		add("mailbox_size", c.MailboxSize, "must be at least 1")
	}
	if c.ReplyTimeout < 0 {
		add("reply_timeout", c.ReplyTimeout, "must not be negative")
	}

	if !slices.Contains(ValidProviders(), c.LLM.Provider) {
		add("llm.provider", c.LLM.Provider, "must be one of "+strings.Join(ValidProviders()[1:], ", "))
	}
	if c.LLM.Provider == "" && c.LLM.Model != "" {
		if _, err := ModelProvider(c.LLM.Model); err != nil {
			add("llm.model", c.LLM.Model, "cannot infer provider")
		}
	}
	if c.LLM.MaxTokens < 1 {
		add("llm.max_tokens", c.LLM.MaxTokens, "must be at least 1")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", c.LLM.Temperature, "must be between 0 and 2")
	}
	if c.LLM.ContextTokens < 0 {
		add("llm.context_tokens", c.LLM.ContextTokens, "must not be negative")
	}

	if !slices.Contains([]string{SpeakerRoundRobin, SpeakerModel}, c.Policy.Speaker) {
		add("policy.speaker", c.Policy.Speaker, "must be round_robin or model")
	}
	if !slices.Contains([]string{JudgeTurnBudget, JudgeModel}, c.Policy.Judge) {
		add("policy.judge", c.Policy.Judge, "must be turn_budget or model")
	}
	if !slices.Contains([]string{SummarizerExtractive, SummarizerModel}, c.Policy.Summarizer) {
		add("policy.summarizer", c.Policy.Summarizer, "must be extractive or model")
	}
	if c.Policy.MaxTurnsPerSection < 1 {
		add("policy.max_turns_per_section", c.Policy.MaxTurnsPerSection, "must be at least 1")
	}
	if c.Policy.CandidateReplies < 1 {
		add("policy.candidate_replies_per_section", c.Policy.CandidateReplies, "must be at least 1")
	}

	if !slices.Contains(ValidBackends(), c.Persistence.Backend) {
		add("persistence.backend", c.Persistence.Backend, "must be one of "+strings.Join(ValidBackends(), ", "))
	}
	if c.Persistence.Backend == BackendSQLite && c.Persistence.SQLitePath == "" {
		add("persistence.sqlite_path", c.Persistence.SQLitePath, "is required for the sqlite backend")
	}
	if c.Persistence.Backend == BackendRedis && c.Persistence.RedisAddr == "" {
		add("persistence.redis_addr", c.Persistence.RedisAddr, "is required for the redis backend")
	}

	if c.EventLog.Enabled && c.EventLog.Dir == "" {
		add("eventlog.dir", c.EventLog.Dir, "is required when the event log is enabled")
	}
	if c.Status.Enabled && c.Status.Addr == "" {
		add("status.addr", c.Status.Addr, "is required when the status server is enabled")
	}
	return errs
}
