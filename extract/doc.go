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

// Package extract turns uploaded documents into pages of text.
//
// PDFs are validated and counted with pdfcpu and read natively with
// ledongthuc/pdf, which keeps glyph positions so lines carry bounding boxes.
// When the whole document yields fewer than MinTextLength characters it is
// treated as scanned and handed to an OCR engine (see extract/ocr). Plain
// text files become a single page.
//
// Page boundaries are carried by core.Page values; nothing downstream parses
// page markers out of the text.
package extract
