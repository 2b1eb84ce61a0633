// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scope decides which indexed chunks a query may see.
//
// A Scope names an owner, a document, both or neither. Guarded scopes always
// restrict to the owner and refuse to run without one; unguarded scopes are
// global unless a document is named. Build turns a Scope into a Filter that
// renders as an OData expression for the remote index and evaluates directly
// against local records.
package scope

import (
	"fmt"
	"strings"

	"github.com/poiesic/docscope/core"
)

// Mode selects whether the owner restriction is enforced.
type Mode int

const (
	Guarded Mode = iota
	Unguarded
)

func (m Mode) String() string {
	if m == Unguarded {
		return "unguarded"
	}
	return "guarded"
}

// ParseMode accepts "guarded" and "unguarded".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "guarded":
		return Guarded, nil
	case "unguarded":
		return Unguarded, nil
	default:
		return Guarded, fmt.Errorf("unknown scope mode %q", s)
	}
}

// Scope is the caller's view of the corpus.
type Scope struct {
	OwnerID      string
	DocumentName string
	Mode         Mode
}

// Field names used in filter expressions.
const (
	OwnerField    = "owner_id"
	FilenameField = "filename"
)

// Filter is a conjunction of equality clauses; an empty field adds no
// clause. The zero Filter matches everything.
type Filter struct {
	Owner    string
	Filename string
}

// Build validates s. A guarded scope without an owner fails with
// core.ErrScopeViolation.
func Build(s Scope) (Filter, error) {
	var f Filter
	if s.Mode == Guarded {
		if strings.TrimSpace(s.OwnerID) == "" {
			return Filter{}, core.ErrScopeViolation
		}
		f.Owner = s.OwnerID
	}
	f.Filename = s.DocumentName
	return f, nil
}

// IsGlobal reports whether the filter restricts nothing.
func (f Filter) IsGlobal() bool {
	return f.Owner == "" && f.Filename == ""
}

// OData renders the filter for Azure AI Search. Single quotes in values are
// doubled. A global filter renders as "".
func (f Filter) OData() string {
	var clauses []string
	if f.Owner != "" {
		clauses = append(clauses, fmt.Sprintf("%s eq '%s'", OwnerField, quote(f.Owner)))
	}
	if f.Filename != "" {
		clauses = append(clauses, fmt.Sprintf("%s eq '%s'", FilenameField, quote(f.Filename)))
	}
	return strings.Join(clauses, " and ")
}

// Match evaluates the filter against a record's owner and filename.
func (f Filter) Match(owner, filename string) bool {
	if f.Owner != "" && owner != f.Owner {
		return false
	}
	if f.Filename != "" && filename != f.Filename {
		return false
	}
	return true
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
