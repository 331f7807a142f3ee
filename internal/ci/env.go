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
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Env is a snapshot of environment variables.
type Env map[string]string

// EnvFromOS captures the process environment.
func EnvFromOS() Env {
	env := make(Env)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// EnvFromFile reads a dotenv file. It is useful for replaying a build
// environment captured elsewhere.
func EnvFromFile(path string) (Env, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return Env(vars), nil
}

// Has reports whether key is set, even to an empty value.
func (e Env) Has(key string) bool {
	_, ok := e[key]
	return ok
}

// first returns the first non-empty value among keys.
func (e Env) first(keys ...string) string {
	for _, k := range keys {
		if v := e[k]; v != "" {
			return v
		}
	}
	return ""
}
