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

// Package ci extracts CI provider, git and runtime tags from a build
// environment.
//
// The provider is chosen from the first marker variable present (see
// [Providers]). Provider values are then completed with repository
// metadata from an [git.Extractor], overridden by any DD_GIT_* values,
// normalized, and finally decorated with OS and runtime facets:
//
//	ex := ci.NewExtractor(gitExtractor)
//	tags := ex.Tags(ctx, ci.EnvFromOS(), ".")
package ci
