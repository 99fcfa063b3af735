// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package migrations embeds the goose SQL migrations for the
// orchestrator schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
