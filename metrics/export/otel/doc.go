// Package otel provides OpenTelemetry metric exporter bindings for the
// engine's counters.
//
// [NewExporter] registers an Int64ObservableCounter per engine metric. A
// single callback reads [authcore.Engine.MetricsSnapshot] on each collection
// cycle.
//
// Callers own the OTel MeterProvider; this package only attaches to a
// supplied Meter and never mutates engine state.
package otel
