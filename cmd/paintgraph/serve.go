// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/paint"
	"github.com/colorbrush/paintgraph/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an HTTP API for running analyses and scraping metrics",
	RunE:  runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
}

// analyzeRequest is the POST /v1/analyze request body: a class pool path
// and rule file path on the server's filesystem, plus an entry method.
type analyzeRequest struct {
	ClassesPath string `json:"classes_path" binding:"required"`
	RulesPath   string `json:"rules_path" binding:"required"`
	EntryClass  string `json:"entry_class" binding:"required"`
	EntryMethod string `json:"entry_method" binding:"required"`
	EntryDesc   string `json:"entry_descriptor" binding:"required"`
	EntryStatic bool   `json:"entry_static"`
}

type analyzeResponse struct {
	SessionID     string        `json:"session_id"`
	Intersections []jsonFinding `json:"intersections"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{Level: parseLevel(cfg.LogLevel), LogDir: cfg.LogDir, Service: "paintgraph-serve"})

	exporter, err := otelprom.New()
	if err != nil {
		return err
	}
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)))

	router := gin.Default()
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/v1/analyze", handleAnalyze(logger))

	logger.Info("serving", "addr", serveAddr)
	return router.Run(serveAddr)
}

// handleAnalyze runs one Session.Analyze per request, scoped to the request
// body's class pool, rules, and entry method.
func handleAnalyze(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := uuid.New()
		reqLogger := logger.With("request_id", sessionID.String())

		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			reqLogger.Warn("invalid request body", "error", err.Error())
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		resolver, err := classfile.NewJSONResolver(req.ClassesPath)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		rules, err := classfile.LoadRuleFile(req.RulesPath)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		entry := classfile.MethodRef{Class: classfile.ClassName(req.EntryClass), Name: req.EntryMethod, Descriptor: req.EntryDesc}
		session := paint.NewSession(resolver, rules, cfg, reqLogger)
		intersections, err := session.Analyze(c.Request.Context(), entry, req.EntryStatic)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, classfile.ErrClassNotFound) || errors.Is(err, paint.ErrMethodNotFound) {
				status = http.StatusNotFound
			}
			reqLogger.Error("analysis failed", "error", err.Error())
			c.JSON(status, errorResponse{Error: err.Error()})
			return
		}

		findings := make([]jsonFinding, len(intersections))
		for i, it := range intersections {
			findings[i] = jsonFinding{Method: it.Method.String(), Source: it.Source, Sink: it.Sink}
		}
		c.JSON(http.StatusOK, analyzeResponse{SessionID: sessionID.String(), Intersections: findings})
	}
}
