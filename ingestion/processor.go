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

package ingestion

import (
	"context"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/extract"
)

// job carries one document through the processing stages.
type job struct {
	doc        *core.Document
	extraction *extract.Extraction
	chunks     []*core.Chunk
	indexed    []*core.Chunk // chunks the index accepted
}

// processor is one stage applied to a chunked document.
// Stages run in order; an error fails the document.
type processor interface {
	process(ctx context.Context, j *job) error
}
