//go:build ignore

// SPDX-License-Identifier: Apache-2.0
// Swarm Observability Dashboards
// This file documents dashboard templates for Grafana or any OTLP backend
// fed by `telemetry.exporter: otlp`.
//
// DASHBOARD: Conversation Flow
//   Shows how user turns move through the agent roster.
//
//   Queries:
//   - swarm.steps.total{swarm.agent.name} (rate 5m)
//     Metric: Reasoning passes per agent
//     Display: Stacked bar chart, one series per agent
//     Reading: a specialist with many steps per turn is looping on tools
//
//   - swarm.handoffs.total{swarm.handoff.from,swarm.handoff.to} (increase 1h)
//     Metric: Control transfers between agents
//     Display: Sankey or table (from -> to)
//     Reading: EmergencyCoordinator should be the dominant source
//
//   - swarm.tool_calls.total{swarm.agent.name,swarm.tool.name,swarm.tool.success} (rate 5m)
//     Metric: Domain tool invocations
//     Display: Line chart split by swarm.tool.success
//     Alert Threshold: swarm.tool.success=false > 10% of calls for any tool
//
// DASHBOARD: Errors & Retries
//   Shows failures by taxonomy code and how the invocation shell recovers.
//
//   Queries:
//   - swarm.errors.total{error.code,component,recoverable} (rate 5m)
//     Metric: Error rate by code
//     Display: Line chart with legend (LLM_ERROR, TIMEOUT, MALFORMED_OUTPUT,
//              TURN_BUDGET_EXCEEDED, REASONING_LOOP_EXCEEDED, ...)
//     Alert Threshold: any TURN_BUDGET_EXCEEDED or UNKNOWN_AGENT
//
//   - swarm.retries.total{error.code} (rate 5m)
//     Metric: Retried user turns
//     Display: Single stat
//     Goal: retries / turns < 5%
//
//   - swarm.circuitbreaker.state{breaker}
//     Metric: Model circuit breaker (0=open, 1=half-open, 2=closed)
//     Display: Status panel
//     Meaning:
//       OPEN (0): model calls fail fast with LLM_ERROR
//       HALF_OPEN (1): probing the model after the cooldown
//       CLOSED (2): normal operation
//
// DASHBOARD: Session Hygiene
//   Shows the idle session sweeper (session.ttl + session.sweep_interval).
//
//   Queries:
//   - swarm.runtime.session.sweep.count (increase 1h)
//   - swarm.runtime.session.expired.count (increase 1h)
//   - swarm.runtime.session.sweep.error.count (increase 1h)
//     Alert Threshold: > 0 errors in 15m
//   - swarm.runtime.session.sweep.latency_ms (p95)
//     Display: Heatmap
//
// TRACES:
//   Runtime.Invoke
//     Engine.Run
//       Engine.Step (one per active agent)
//         Engine.Reason
//         Engine.Tool (one per tool call)
//   Logs carry trace_id, span_id, run_id and session_id, so a slow turn in the
//   trace view links straight to its swarm.step.* log lines.
//
package main

// This file is documentation only and is not compiled.
// See pkg/telemetry/metrics.go for the instruments.
