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

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/tombee/apmkit/internal/git"
)

func TestProviders(t *testing.T) {
	tests := []struct {
		name string
		env  Env
		want Tags
	}{
		{
			name: "appveyor github repository",
			env: Env{
				"APPVEYOR":                               "True",
				"APPVEYOR_REPO_PROVIDER":                 "github",
				"APPVEYOR_REPO_NAME":                     "acme/widgets",
				"APPVEYOR_BUILD_ID":                      "123",
				"APPVEYOR_BUILD_NUMBER":                  "45",
				"APPVEYOR_BUILD_FOLDER":                  "/c/projects/widgets",
				"APPVEYOR_REPO_COMMIT":                   "abc",
				"APPVEYOR_REPO_BRANCH":                   "main",
				"APPVEYOR_PULL_REQUEST_HEAD_REPO_BRANCH": "feature",
				"APPVEYOR_REPO_COMMIT_AUTHOR":            "Ada",
			},
			want: Tags{
				ProviderName:         "appveyor",
				PipelineURL:          "https://ci.appveyor.com/project/acme/widgets/builds/123",
				JobURL:               "https://ci.appveyor.com/project/acme/widgets/builds/123",
				git.RepositoryURL:    "https://github.com/acme/widgets.git",
				git.CommitSHA:        "abc",
				git.Branch:           "feature",
				WorkspacePath:        "/c/projects/widgets",
				PipelineID:           "123",
				PipelineName:         "acme/widgets",
				PipelineNumber:       "45",
				git.CommitAuthorName: "Ada",
			},
		},
		{
			name: "appveyor other repository provider",
			env: Env{
				"APPVEYOR":               "True",
				"APPVEYOR_REPO_PROVIDER": "bitbucket",
				"APPVEYOR_REPO_NAME":     "acme/widgets",
				"APPVEYOR_REPO_COMMIT":   "abc",
				"APPVEYOR_REPO_BRANCH":   "main",
			},
			want: Tags{
				ProviderName: "appveyor",
				PipelineName: "acme/widgets",
			},
		},
		{
			name: "azure pipelines tag ref",
			env: Env{
				"TF_BUILD":                       "True",
				"SYSTEM_TEAMFOUNDATIONSERVERURI": "https://dev.azure.com/acme/",
				"SYSTEM_TEAMPROJECTID":           "proj",
				"BUILD_BUILDID":                  "99",
				"SYSTEM_JOBID":                   "job",
				"SYSTEM_TASKINSTANCEID":          "task",
				"BUILD_SOURCEBRANCH":             "refs/tags/v1.2.0",
				"BUILD_REPOSITORY_URI":           "https://dev.azure.com/acme/_git/widgets",
				"BUILD_SOURCEVERSION":            "def",
			},
			want: Tags{
				ProviderName:      "azurepipelines",
				PipelineURL:       "https://dev.azure.com/acme/proj/_build/results?buildId=99",
				JobURL:            "https://dev.azure.com/acme/proj/_build/results?buildId=99&view=logs&j=job&t=task",
				git.Tag:           "refs/tags/v1.2.0",
				PipelineID:        "99",
				PipelineNumber:    "99",
				git.RepositoryURL: "https://dev.azure.com/acme/_git/widgets",
				git.CommitSHA:     "def",
			},
		},
		{
			name: "azure pipelines without server uri",
			env: Env{
				"TF_BUILD":           "True",
				"BUILD_BUILDID":      "99",
				"BUILD_SOURCEBRANCH": "refs/heads/main",
			},
			want: Tags{
				ProviderName:   "azurepipelines",
				git.Branch:     "refs/heads/main",
				PipelineID:     "99",
				PipelineNumber: "99",
			},
		},
		{
			name: "bitbucket",
			env: Env{
				"BITBUCKET_COMMIT":         "abc",
				"BITBUCKET_REPO_FULL_NAME": "acme/widgets",
				"BITBUCKET_BUILD_NUMBER":   "7",
				"BITBUCKET_PIPELINE_UUID":  "{1234-5678}",
				"BITBUCKET_BRANCH":         "main",
				"BITBUCKET_CLONE_DIR":      "/opt/atlassian/pipelines/agent/build",
			},
			want: Tags{
				ProviderName:   "bitbucket",
				PipelineURL:    "https://bitbucket.org/acme/widgets/addon/pipelines/home#!/results/7",
				JobURL:         "https://bitbucket.org/acme/widgets/addon/pipelines/home#!/results/7",
				git.Branch:     "main",
				git.CommitSHA:  "abc",
				PipelineID:     "1234-5678",
				PipelineName:   "acme/widgets",
				PipelineNumber: "7",
				WorkspacePath:  "/opt/atlassian/pipelines/agent/build",
			},
		},
		{
			name: "buildkite",
			env: Env{
				"BUILDKITE":                     "true",
				"BUILDKITE_BUILD_URL":           "https://buildkite.com/acme/widgets/builds/3",
				"BUILDKITE_JOB_ID":              "j1",
				"BUILDKITE_COMMIT":              "abc",
				"BUILDKITE_BUILD_CREATOR_EMAIL": "carl@example.com",
			},
			want: Tags{
				ProviderName:             "buildkite",
				PipelineURL:              "https://buildkite.com/acme/widgets/builds/3",
				JobURL:                   "https://buildkite.com/acme/widgets/builds/3#j1",
				git.CommitSHA:            "abc",
				git.CommitCommitterEmail: "carl@example.com",
			},
		},
		{
			name: "circleci",
			env: Env{
				"CIRCLECI":           "true",
				"CIRCLE_WORKFLOW_ID": "wf",
				"CIRCLE_JOB":         "test",
				"CIRCLE_TAG":         "v2",
			},
			want: Tags{
				ProviderName: "circleci",
				PipelineURL:  "https://app.circleci.com/pipelines/workflows/wf",
				PipelineID:   "wf",
				JobName:      "test",
				git.Tag:      "v2",
			},
		},
		{
			name: "github actions pull request",
			env: Env{
				"GITHUB_SHA":        "abc",
				"GITHUB_REPOSITORY": "acme/widgets",
				"GITHUB_HEAD_REF":   "feature/login",
				"GITHUB_REF":        "refs/pull/1/merge",
				"GITHUB_RUN_ID":     "11",
				"GITHUB_WORKFLOW":   "ci",
				"GITHUB_WORKSPACE":  "/home/runner/work/widgets",
			},
			want: Tags{
				ProviderName:      "github",
				git.RepositoryURL: "https://github.com/acme/widgets.git",
				PipelineURL:       "https://github.com/acme/widgets/commit/abc/checks",
				JobURL:            "https://github.com/acme/widgets/commit/abc/checks",
				git.Branch:        "feature/login",
				git.CommitSHA:     "abc",
				PipelineID:        "11",
				PipelineName:      "ci",
				WorkspacePath:     "/home/runner/work/widgets",
			},
		},
		{
			name: "gitlab",
			env: Env{
				"GITLAB_CI":           "true",
				"CI_COMMIT_AUTHOR":    "Ada Author <ada@example.com>",
				"CI_PIPELINE_URL":     "https://gitlab.com/acme/widgets/-/pipelines/42",
				"CI_COMMIT_TIMESTAMP": "2024-03-01T12:30:00+00:00",
				"CI_JOB_STAGE":        "test",
			},
			want: Tags{
				ProviderName:          "gitlab",
				git.CommitAuthorName:  "Ada Author",
				git.CommitAuthorEmail: "ada@example.com",
				git.CommitAuthorDate:  "2024-03-01T12:30:00+00:00",
				PipelineURL:           "https://gitlab.com/acme/widgets/pipelines/42",
				StageName:             "test",
			},
		},
		{
			name: "jenkins multibranch job",
			env: Env{
				"JENKINS_URL": "https://jenkins.example.com/",
				"GIT_BRANCH":  "origin/feature",
				"JOB_NAME":    "widgets/feature/KEY=VALUE",
				"GIT_URL_1":   "https://github.com/acme/widgets.git",
				"BUILD_TAG":   "jenkins-widgets-1",
			},
			want: Tags{
				ProviderName:      "jenkins",
				git.Branch:        "origin/feature",
				PipelineName:      "widgets",
				git.RepositoryURL: "https://github.com/acme/widgets.git",
				PipelineID:        "jenkins-widgets-1",
			},
		},
		{
			name: "teamcity without server url",
			env: Env{
				"TEAMCITY_VERSION": "2023.1",
				"BUILD_ID":         "5",
			},
			want: Tags{
				ProviderName: "teamcity",
				PipelineID:   "5",
			},
		},
		{
			name: "teamcity",
			env: Env{
				"TEAMCITY_VERSION": "2023.1",
				"SERVER_URL":       "https://tc.example.com",
				"BUILD_ID":         "5",
			},
			want: Tags{
				ProviderName: "teamcity",
				PipelineURL:  "https://tc.example.com/viewLog.html?buildId=5",
				PipelineID:   "5",
			},
		},
		{
			name: "travis",
			env: Env{
				"TRAVIS":                     "true",
				"TRAVIS_REPO_SLUG":           "acme/widgets",
				"TRAVIS_BRANCH":              "main",
				"TRAVIS_PULL_REQUEST_BRANCH": "",
			},
			want: Tags{
				ProviderName:      "travisci",
				git.RepositoryURL: "https://github.com/acme/widgets.git",
				PipelineName:      "acme/widgets",
				git.Branch:        "main",
			},
		},
		{
			name: "bitrise message from subject and body",
			env: Env{
				"BITRISE_BUILD_SLUG":               "slug",
				"GIT_CLONE_COMMIT_MESSAGE_SUBJECT": "Fix bug",
				"GIT_CLONE_COMMIT_MESSAGE_BODY":    "Details",
				"GIT_CLONE_COMMIT_HASH":            "abc",
				"GIT_CLONE_COMMIT_COMMITER_NAME":   "Carl",
				"GIT_CLONE_COMMIT_COMMITER_EMAIL":  "carl@example.com",
			},
			want: Tags{
				ProviderName:             "bitrise",
				PipelineID:               "slug",
				git.CommitMessage:        "Fix bug:\nDetails",
				git.CommitSHA:            "abc",
				git.CommitCommitterName:  "Carl",
				git.CommitCommitterEmail: "carl@example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Detect(tt.env)
			if !ok {
				t.Fatal("Detect() found no provider")
			}
			if diff := cmp.Diff(tt.want, p.Extract(tt.env)); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetect_Priority(t *testing.T) {
	// Jenkins builds often export GIT_* and GITHUB_* variables as well.
	env := Env{"JENKINS_URL": "x", "GITHUB_SHA": "abc", "BITRISE_BUILD_SLUG": "s"}
	p, ok := Detect(env)
	assert.True(t, ok)
	assert.Equal(t, "github", p.Name)

	p, ok = Detect(Env{"TF_BUILD": "", "TRAVIS": "true"})
	assert.True(t, ok)
	assert.Equal(t, "azurepipelines", p.Name, "an empty marker still counts as present")

	_, ok = Detect(Env{"PATH": "/usr/bin"})
	assert.False(t, ok)
}

func TestJenkinsJobName(t *testing.T) {
	tests := []struct {
		name, job, branch, want string
	}{
		{"plain", "widgets", "", "widgets"},
		{"branch segment", "widgets/main", "origin/main", "widgets"},
		{"matrix segments", "widgets/main/OS=linux/GO=1.22", "refs/heads/main", "widgets"},
		{"empty", "", "main", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jenkinsJobName(tt.job, tt.branch))
		})
	}
}
