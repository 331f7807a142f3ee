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

package git

// Tag keys for repository metadata.
const (
	RepositoryURL        = "git.repository_url"
	CommitSHA            = "git.commit.sha"
	Branch               = "git.branch"
	Tag                  = "git.tag"
	CommitMessage        = "git.commit.message"
	CommitAuthorName     = "git.commit.author.name"
	CommitAuthorEmail    = "git.commit.author.email"
	CommitAuthorDate     = "git.commit.author.date"
	CommitCommitterName  = "git.commit.committer.name"
	CommitCommitterEmail = "git.commit.committer.email"
	CommitCommitterDate  = "git.commit.committer.date"
)

// userEnv maps DD_GIT_* override variables to tag keys.
var userEnv = map[string]string{
	"DD_GIT_REPOSITORY_URL":         RepositoryURL,
	"DD_GIT_COMMIT_SHA":             CommitSHA,
	"DD_GIT_BRANCH":                 Branch,
	"DD_GIT_TAG":                    Tag,
	"DD_GIT_COMMIT_MESSAGE":         CommitMessage,
	"DD_GIT_COMMIT_AUTHOR_NAME":     CommitAuthorName,
	"DD_GIT_COMMIT_AUTHOR_EMAIL":    CommitAuthorEmail,
	"DD_GIT_COMMIT_AUTHOR_DATE":     CommitAuthorDate,
	"DD_GIT_COMMIT_COMMITTER_NAME":  CommitCommitterName,
	"DD_GIT_COMMIT_COMMITTER_EMAIL": CommitCommitterEmail,
	"DD_GIT_COMMIT_COMMITTER_DATE":  CommitCommitterDate,
}

// UserMetadata returns the user-supplied DD_GIT_* values found in env,
// keyed by tag. Empty values are omitted.
func UserMetadata(env map[string]string) map[string]string {
	out := make(map[string]string)
	for name, key := range userEnv {
		if v := env[name]; v != "" {
			out[key] = v
		}
	}
	return out
}
