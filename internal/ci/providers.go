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
	"fmt"
	"strings"

	"github.com/tombee/apmkit/internal/git"
)

// Provider extracts tags from one CI system's environment.
type Provider struct {
	// Name is the value reported as ci.provider.name.
	Name string

	// Marker is the variable whose presence identifies the provider.
	Marker string

	// Extract maps the environment to tags. Absent variables produce
	// absent tags, never errors.
	Extract func(Env) Tags
}

// Providers lists the supported CI systems in detection order.
var Providers = []Provider{
	{Name: "appveyor", Marker: "APPVEYOR", Extract: extractAppVeyor},
	{Name: "azurepipelines", Marker: "TF_BUILD", Extract: extractAzurePipelines},
	{Name: "bitbucket", Marker: "BITBUCKET_COMMIT", Extract: extractBitbucket},
	{Name: "buildkite", Marker: "BUILDKITE", Extract: extractBuildkite},
	{Name: "circleci", Marker: "CIRCLECI", Extract: extractCircleCI},
	{Name: "github", Marker: "GITHUB_SHA", Extract: extractGitHubActions},
	{Name: "gitlab", Marker: "GITLAB_CI", Extract: extractGitLab},
	{Name: "jenkins", Marker: "JENKINS_URL", Extract: extractJenkins},
	{Name: "teamcity", Marker: "TEAMCITY_VERSION", Extract: extractTeamCity},
	{Name: "travisci", Marker: "TRAVIS", Extract: extractTravis},
	{Name: "bitrise", Marker: "BITRISE_BUILD_SLUG", Extract: extractBitrise},
}

// Detect returns the first provider whose marker is set in env.
func Detect(env Env) (Provider, bool) {
	for _, p := range Providers {
		if env.Has(p.Marker) {
			return p, true
		}
	}
	return Provider{}, false
}

// splitBranchOrTag sends refs that name a tag to the tag field.
func splitBranchOrTag(ref string) (branch, tag string) {
	if strings.Contains(ref, "tags/") {
		return "", ref
	}
	return ref, ""
}

// all reports whether every value is non-empty.
func all(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return false
		}
	}
	return true
}

func extractAppVeyor(env Env) Tags {
	t := Tags{ProviderName: "appveyor"}
	repo, build := env["APPVEYOR_REPO_NAME"], env["APPVEYOR_BUILD_ID"]
	if all(repo, build) {
		url := fmt.Sprintf("https://ci.appveyor.com/project/%s/builds/%s", repo, build)
		t.set(PipelineURL, url)
		t.set(JobURL, url)
	}
	if env["APPVEYOR_REPO_PROVIDER"] == "github" {
		if repo != "" {
			t.set(git.RepositoryURL, fmt.Sprintf("https://github.com/%s.git", repo))
		}
		t.set(git.CommitSHA, env["APPVEYOR_REPO_COMMIT"])
		t.set(git.Branch, env.first("APPVEYOR_PULL_REQUEST_HEAD_REPO_BRANCH", "APPVEYOR_REPO_BRANCH"))
		t.set(git.Tag, env["APPVEYOR_REPO_TAG_NAME"])
	}
	t.set(WorkspacePath, env["APPVEYOR_BUILD_FOLDER"])
	t.set(PipelineID, build)
	t.set(PipelineName, repo)
	t.set(PipelineNumber, env["APPVEYOR_BUILD_NUMBER"])
	t.set(git.CommitMessage, env["APPVEYOR_REPO_COMMIT_MESSAGE_EXTENDED"])
	t.set(git.CommitAuthorName, env["APPVEYOR_REPO_COMMIT_AUTHOR"])
	t.set(git.CommitAuthorEmail, env["APPVEYOR_REPO_COMMIT_AUTHOR_EMAIL"])
	return t
}

func extractAzurePipelines(env Env) Tags {
	t := Tags{ProviderName: "azurepipelines"}
	server, project, build := env["SYSTEM_TEAMFOUNDATIONSERVERURI"], env["SYSTEM_TEAMPROJECTID"], env["BUILD_BUILDID"]
	if all(server, project, build) {
		base := fmt.Sprintf("%s%s/_build/results?buildId=%s", server, project, build)
		t.set(PipelineURL, base)
		t.set(JobURL, fmt.Sprintf("%s&view=logs&j=%s&t=%s", base, env["SYSTEM_JOBID"], env["SYSTEM_TASKINSTANCEID"]))
	}
	branch, tag := splitBranchOrTag(env.first("SYSTEM_PULLREQUEST_SOURCEBRANCH", "BUILD_SOURCEBRANCH", "BUILD_SOURCEBRANCHNAME"))
	t.set(git.Branch, branch)
	t.set(git.Tag, tag)
	t.set(WorkspacePath, env["BUILD_SOURCESDIRECTORY"])
	t.set(PipelineID, build)
	t.set(PipelineName, env["BUILD_DEFINITIONNAME"])
	t.set(PipelineNumber, build)
	t.set(git.RepositoryURL, env.first("SYSTEM_PULLREQUEST_SOURCEREPOSITORYURI", "BUILD_REPOSITORY_URI"))
	t.set(git.CommitSHA, env.first("SYSTEM_PULLREQUEST_SOURCECOMMITID", "BUILD_SOURCEVERSION"))
	t.set(git.CommitMessage, env["BUILD_SOURCEVERSIONMESSAGE"])
	t.set(git.CommitAuthorName, env["BUILD_REQUESTEDFORID"])
	t.set(git.CommitAuthorEmail, env["BUILD_REQUESTEDFOREMAIL"])
	return t
}

func extractBitbucket(env Env) Tags {
	t := Tags{ProviderName: "bitbucket"}
	repo, number := env["BITBUCKET_REPO_FULL_NAME"], env["BITBUCKET_BUILD_NUMBER"]
	if all(repo, number) {
		url := fmt.Sprintf("https://bitbucket.org/%s/addon/pipelines/home#!/results/%s", repo, number)
		t.set(PipelineURL, url)
		t.set(JobURL, url)
	}
	t.set(git.Branch, env["BITBUCKET_BRANCH"])
	t.set(git.CommitSHA, env["BITBUCKET_COMMIT"])
	t.set(git.RepositoryURL, env["BITBUCKET_GIT_SSH_ORIGIN"])
	t.set(git.Tag, env["BITBUCKET_TAG"])
	t.set(PipelineID, strings.Trim(env["BITBUCKET_PIPELINE_UUID"], "{}"))
	t.set(PipelineName, repo)
	t.set(PipelineNumber, number)
	t.set(WorkspacePath, env["BITBUCKET_CLONE_DIR"])
	return t
}

func extractBuildkite(env Env) Tags {
	t := Tags{ProviderName: "buildkite"}
	buildURL := env["BUILDKITE_BUILD_URL"]
	if all(buildURL, env["BUILDKITE_JOB_ID"]) {
		t.set(JobURL, buildURL+"#"+env["BUILDKITE_JOB_ID"])
	}
	t.set(git.Branch, env["BUILDKITE_BRANCH"])
	t.set(git.CommitSHA, env["BUILDKITE_COMMIT"])
	t.set(git.RepositoryURL, env["BUILDKITE_REPO"])
	t.set(git.Tag, env["BUILDKITE_TAG"])
	t.set(PipelineID, env["BUILDKITE_BUILD_ID"])
	t.set(PipelineName, env["BUILDKITE_PIPELINE_SLUG"])
	t.set(PipelineNumber, env["BUILDKITE_BUILD_NUMBER"])
	t.set(PipelineURL, buildURL)
	t.set(WorkspacePath, env["BUILDKITE_BUILD_CHECKOUT_PATH"])
	t.set(git.CommitMessage, env["BUILDKITE_MESSAGE"])
	t.set(git.CommitAuthorName, env["BUILDKITE_BUILD_AUTHOR"])
	t.set(git.CommitAuthorEmail, env["BUILDKITE_BUILD_AUTHOR_EMAIL"])
	t.set(git.CommitCommitterName, env["BUILDKITE_BUILD_CREATOR"])
	t.set(git.CommitCommitterEmail, env["BUILDKITE_BUILD_CREATOR_EMAIL"])
	return t
}

func extractCircleCI(env Env) Tags {
	t := Tags{ProviderName: "circleci"}
	workflow := env["CIRCLE_WORKFLOW_ID"]
	if workflow != "" {
		t.set(PipelineURL, "https://app.circleci.com/pipelines/workflows/"+workflow)
	}
	t.set(git.Branch, env["CIRCLE_BRANCH"])
	t.set(git.CommitSHA, env["CIRCLE_SHA1"])
	t.set(git.RepositoryURL, env["CIRCLE_REPOSITORY_URL"])
	t.set(git.Tag, env["CIRCLE_TAG"])
	t.set(PipelineID, workflow)
	t.set(PipelineName, env["CIRCLE_PROJECT_REPONAME"])
	t.set(PipelineNumber, env["CIRCLE_BUILD_NUM"])
	t.set(JobURL, env["CIRCLE_BUILD_URL"])
	t.set(JobName, env["CIRCLE_JOB"])
	t.set(WorkspacePath, env["CIRCLE_WORKING_DIRECTORY"])
	return t
}

func extractGitHubActions(env Env) Tags {
	t := Tags{ProviderName: "github"}
	repo, sha := env["GITHUB_REPOSITORY"], env["GITHUB_SHA"]
	if repo != "" {
		t.set(git.RepositoryURL, fmt.Sprintf("https://github.com/%s.git", repo))
	}
	if all(repo, sha) {
		url := fmt.Sprintf("https://github.com/%s/commit/%s/checks", repo, sha)
		t.set(PipelineURL, url)
		t.set(JobURL, url)
	}
	branch, tag := splitBranchOrTag(env.first("GITHUB_HEAD_REF", "GITHUB_REF"))
	t.set(git.Branch, branch)
	t.set(git.Tag, tag)
	t.set(git.CommitSHA, sha)
	t.set(PipelineID, env["GITHUB_RUN_ID"])
	t.set(PipelineName, env["GITHUB_WORKFLOW"])
	t.set(PipelineNumber, env["GITHUB_RUN_NUMBER"])
	t.set(WorkspacePath, env["GITHUB_WORKSPACE"])
	return t
}

func extractGitLab(env Env) Tags {
	t := Tags{ProviderName: "gitlab"}
	if author := env["CI_COMMIT_AUTHOR"]; author != "" {
		// "Name <email>"
		name, email, _ := strings.Cut(strings.Trim(author, "> "), " <")
		t.set(git.CommitAuthorName, name)
		t.set(git.CommitAuthorEmail, email)
	}
	t.set(PipelineURL, strings.ReplaceAll(env["CI_PIPELINE_URL"], "/-/pipelines/", "/pipelines/"))
	t.set(git.Branch, env["CI_COMMIT_BRANCH"])
	t.set(git.CommitSHA, env["CI_COMMIT_SHA"])
	t.set(git.RepositoryURL, env["CI_REPOSITORY_URL"])
	t.set(git.Tag, env["CI_COMMIT_TAG"])
	t.set(StageName, env["CI_JOB_STAGE"])
	t.set(JobName, env["CI_JOB_NAME"])
	t.set(JobURL, env["CI_JOB_URL"])
	t.set(PipelineID, env["CI_PIPELINE_ID"])
	t.set(PipelineName, env["CI_PROJECT_PATH"])
	t.set(PipelineNumber, env["CI_PIPELINE_IID"])
	t.set(WorkspacePath, env["CI_PROJECT_DIR"])
	t.set(git.CommitMessage, env["CI_COMMIT_MESSAGE"])
	t.set(git.CommitAuthorDate, env["CI_COMMIT_TIMESTAMP"])
	return t
}

func extractJenkins(env Env) Tags {
	t := Tags{ProviderName: "jenkins"}
	branch, tag := splitBranchOrTag(env["GIT_BRANCH"])
	t.set(git.Branch, branch)
	t.set(git.Tag, tag)
	t.set(PipelineName, jenkinsJobName(env["JOB_NAME"], branch))
	t.set(git.CommitSHA, env["GIT_COMMIT"])
	t.set(git.RepositoryURL, env.first("GIT_URL", "GIT_URL_1"))
	t.set(PipelineID, env["BUILD_TAG"])
	t.set(PipelineNumber, env["BUILD_NUMBER"])
	t.set(PipelineURL, env["BUILD_URL"])
	t.set(WorkspacePath, env["WORKSPACE"])
	return t
}

// jenkinsJobName removes the branch segment and matrix "key=value"
// segments from a multibranch job name.
func jenkinsJobName(name, branch string) string {
	if name == "" {
		return ""
	}
	if branch != "" {
		name = strings.ReplaceAll(name, "/"+NormalizeRef(branch), "")
	}
	var parts []string
	for _, seg := range strings.Split(name, "/") {
		if seg != "" && !strings.Contains(seg, "=") {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}

func extractTeamCity(env Env) Tags {
	t := Tags{ProviderName: "teamcity"}
	server, build := env["SERVER_URL"], env["BUILD_ID"]
	if all(server, build) {
		t.set(PipelineURL, fmt.Sprintf("%s/viewLog.html?buildId=%s", server, build))
	}
	t.set(git.CommitSHA, env["BUILD_VCS_NUMBER"])
	t.set(git.RepositoryURL, env["BUILD_VCS_URL"])
	t.set(PipelineID, build)
	t.set(PipelineNumber, env["BUILD_NUMBER"])
	t.set(WorkspacePath, env["BUILD_CHECKOUTDIR"])
	return t
}

func extractTravis(env Env) Tags {
	t := Tags{ProviderName: "travisci"}
	slug := env["TRAVIS_REPO_SLUG"]
	if slug != "" {
		t.set(git.RepositoryURL, fmt.Sprintf("https://github.com/%s.git", slug))
	}
	t.set(git.Branch, env.first("TRAVIS_PULL_REQUEST_BRANCH", "TRAVIS_BRANCH"))
	t.set(git.CommitSHA, env["TRAVIS_COMMIT"])
	t.set(git.Tag, env["TRAVIS_TAG"])
	t.set(JobURL, env["TRAVIS_JOB_WEB_URL"])
	t.set(PipelineID, env["TRAVIS_BUILD_ID"])
	t.set(PipelineName, slug)
	t.set(PipelineNumber, env["TRAVIS_BUILD_NUMBER"])
	t.set(PipelineURL, env["TRAVIS_BUILD_WEB_URL"])
	t.set(WorkspacePath, env["TRAVIS_BUILD_DIR"])
	t.set(git.CommitMessage, env["TRAVIS_COMMIT_MESSAGE"])
	return t
}

func extractBitrise(env Env) Tags {
	t := Tags{ProviderName: "bitrise"}
	message := env["BITRISE_GIT_MESSAGE"]
	if message == "" {
		subject, body := env["GIT_CLONE_COMMIT_MESSAGE_SUBJECT"], env["GIT_CLONE_COMMIT_MESSAGE_BODY"]
		if subject != "" || body != "" {
			message = subject + ":\n" + body
		}
	}
	t.set(git.CommitMessage, message)
	t.set(PipelineID, env["BITRISE_BUILD_SLUG"])
	t.set(PipelineName, env["BITRISE_TRIGGERED_WORKFLOW_ID"])
	t.set(PipelineNumber, env["BITRISE_BUILD_NUMBER"])
	t.set(PipelineURL, env["BITRISE_BUILD_URL"])
	t.set(WorkspacePath, env["BITRISE_SOURCE_DIR"])
	t.set(git.RepositoryURL, env["GIT_REPOSITORY_URL"])
	t.set(git.CommitSHA, env.first("BITRISE_GIT_COMMIT", "GIT_CLONE_COMMIT_HASH"))
	t.set(git.Branch, env.first("BITRISEIO_GIT_BRANCH_DEST", "BITRISE_GIT_BRANCH"))
	t.set(git.Tag, env["BITRISE_GIT_TAG"])
	t.set(git.CommitAuthorName, env["GIT_CLONE_COMMIT_AUTHOR_NAME"])
	t.set(git.CommitAuthorEmail, env["GIT_CLONE_COMMIT_AUTHOR_EMAIL"])
	t.set(git.CommitCommitterName, env["GIT_CLONE_COMMIT_COMMITER_NAME"])
	t.set(git.CommitCommitterEmail, env["GIT_CLONE_COMMIT_COMMITER_EMAIL"])
	return t
}
