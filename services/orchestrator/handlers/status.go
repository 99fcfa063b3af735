// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DrPechenyshka/AE/services/llm"
	"github.com/DrPechenyshka/AE/services/orchestrator/observability"
)

// HandleHealth reports process liveness. It deliberately checks nothing
// downstream; a degraded backend must not fail readiness of this
// service.
func HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// HandleBackendStatus probes the generation backend and reports the
// result. The endpoint itself always answers 200; availability is in
// the body, mirroring how chat exchanges absorb backend faults.
func HandleBackendStatus(client llm.LLMClient, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := client.CheckHealth(c.Request.Context())
		up := err == nil
		metrics.SetBackendUp(up)

		body := gin.H{"backend_up": up}
		if err != nil {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusOK, body)
	}
}
