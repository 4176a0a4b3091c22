// Package gologger resolves the logger pair integration code logs through
// and bridges it onto go-job so the refresh scheduler shares the same sink.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Channel is the logger channel integration code logs under.
const Channel = "integrations"

// Resolve returns the provider/logger pair for the integrations channel.
// Precedence is provider > logger > nop.
func Resolve(provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return ResolveChannel(Channel, provider, logger)
}

// ResolveChannel resolves a named channel; blank names collapse to Channel.
func ResolveChannel(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = Channel
	}
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// SchedulerLogging carries the resolved channel pair next to its go-job
// bridges so refresh scheduler wiring hands one value around.
type SchedulerLogging struct {
	Provider    glog.LoggerProvider
	Logger      glog.Logger
	JobProvider job.LoggerProvider
	JobLogger   job.Logger
}

// ForScheduler resolves the integrations channel and bridges the result for
// go-job consumers.
func ForScheduler(provider glog.LoggerProvider, logger glog.Logger) SchedulerLogging {
	resolvedProvider, resolvedLogger := Resolve(provider, logger)
	return SchedulerLogging{
		Provider:    resolvedProvider,
		Logger:      resolvedLogger,
		JobProvider: ToJobProvider(resolvedProvider),
		JobLogger:   ToJobLogger(resolvedLogger),
	}
}
