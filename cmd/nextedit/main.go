// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command nextedit runs the dependency-aware edit review engine.
//
// Usage:
//
//	nextedit serve --workspace /path/to/project
//	nextedit session list
//	nextedit version
//
// Example requests once serving:
//
//	# Health check
//	curl http://localhost:8091/v1/nextedit/health
//
//	# Start a review session
//	curl -X POST http://localhost:8091/v1/nextedit/sessions \
//	  -H "Content-Type: application/json" \
//	  -d '{"workspace_uri": "/path/to/project", "goal": "clean up TODOs"}'
//
//	# Fetch the next suggestion
//	curl http://localhost:8091/v1/nextedit/sessions/SESSION_ID/next
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
