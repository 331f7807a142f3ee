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

package ci

// Origin is the origin value for traces produced by test runs in CI.
const Origin = "ciapp-test"

// Tag keys.
const (
	ProviderName   = "ci.provider.name"
	PipelineID     = "ci.pipeline.id"
	PipelineName   = "ci.pipeline.name"
	PipelineNumber = "ci.pipeline.number"
	PipelineURL    = "ci.pipeline.url"
	JobName        = "ci.job.name"
	JobURL         = "ci.job.url"
	StageName      = "ci.stage.name"
	WorkspacePath  = "ci.workspace_path"

	OSArchitecture = "os.architecture"
	OSPlatform     = "os.platform"
	OSVersion      = "os.version"
	RuntimeName    = "runtime.name"
	RuntimeVersion = "runtime.version"
)

// Tags maps tag keys to values.
type Tags map[string]string

// Provider returns the detected provider name, or "".
func (t Tags) Provider() string {
	return t[ProviderName]
}

// set stores v under k unless v is empty.
func (t Tags) set(k, v string) {
	if v != "" {
		t[k] = v
	}
}
