// Copyright 2025 Tom Barlow
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

package errors

// UserVisibleError is implemented by errors whose text is written for the
// person running apmkit. The CLI prints Suggestion under the error line
// and includes it in JSON error envelopes.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string
	// Suggestion is a next step such as "pass --git-backend go-git".
	// It may be empty.
	Suggestion() string
}

// ErrorClassifier is implemented by errors that carry a stable category,
// used in logs and to decide whether retrying can help.
type ErrorClassifier interface {
	error
	// ErrorType is a short snake_case category, e.g. "git_not_found".
	ErrorType() string
	IsRetryable() bool
}
