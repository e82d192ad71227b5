package gxserial2tcp

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay directions used as the "direction" label.
const (
	DirectionTCPToSerial = "tcp_to_serial"
	DirectionSerialToTCP = "serial_to_tcp"
)

// I/O operations used as the "op" label.
const (
	OpTCPRead     = "tcp_read"
	OpTCPWrite    = "tcp_write"
	OpSerialRead  = "serial_read"
	OpSerialWrite = "serial_write"
	OpSerialClone = "serial_clone"
)

// Metrics holds the Prometheus collectors shared by all bindings. A nil
// *Metrics disables instrumentation.
type Metrics struct {
	Sessions           *prometheus.CounterVec
	ActiveSessions     *prometheus.GaugeVec
	Bytes              *prometheus.CounterVec
	SerialOpenFailures *prometheus.CounterVec
	AcceptErrors       *prometheus.CounterVec
	IOErrors           *prometheus.CounterVec
}

// NewMetrics registers the relay collectors with reg under namespace.
// An empty namespace defaults to "gxserial2tcp".
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "gxserial2tcp"
	}
	factory := promauto.With(reg)
	binding := []string{"host", "port"}
	return &Metrics{
		Sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of accepted relay sessions",
			},
			binding,
		),
		ActiveSessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of relay sessions in progress",
			},
			binding,
		),
		Bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_total",
				Help:      "Total number of relayed bytes",
			},
			append(binding, "direction"),
		),
		SerialOpenFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "serial_open_failures_total",
				Help:      "Total number of failed serial port opens",
			},
			binding,
		),
		AcceptErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "accept_errors_total",
				Help:      "Total number of failed TCP accepts",
			},
			binding,
		),
		IOErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "io_errors_total",
				Help:      "Total number of relay I/O errors",
			},
			append(binding, "op"),
		),
	}
}

func (m *Metrics) sessionStarted(cfg BindingConfig) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(cfg.Host, cfg.Port).Inc()
	m.ActiveSessions.WithLabelValues(cfg.Host, cfg.Port).Inc()
}

func (m *Metrics) sessionEnded(cfg BindingConfig) {
	if m == nil {
		return
	}
	m.ActiveSessions.WithLabelValues(cfg.Host, cfg.Port).Dec()
}

func (m *Metrics) relayed(cfg BindingConfig, direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Bytes.WithLabelValues(cfg.Host, cfg.Port, direction).Add(float64(n))
}

func (m *Metrics) serialOpenFailed(cfg BindingConfig) {
	if m == nil {
		return
	}
	m.SerialOpenFailures.WithLabelValues(cfg.Host, cfg.Port).Inc()
}

func (m *Metrics) acceptFailed(cfg BindingConfig) {
	if m == nil {
		return
	}
	m.AcceptErrors.WithLabelValues(cfg.Host, cfg.Port).Inc()
}

func (m *Metrics) ioFailed(cfg BindingConfig, op string) {
	if m == nil {
		return
	}
	m.IOErrors.WithLabelValues(cfg.Host, cfg.Port, op).Inc()
}
