// Copyright 2016 Michael Stapelberg and contributors
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

// Package password obtains the password for the command line tools.
package password

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// Default is used when no password is given and none can be prompted for.
// Other F5 tools use the same default.
const Default = "abc123"

// Get returns flagValue if non-empty. Otherwise, it prompts on the terminal
// connected to stdin (twice if confirm is set) or, without a terminal,
// returns Default.
func Get(flagValue string, confirm bool) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return Default, nil
	}
	pw, err := prompt(fd, "Password: ")
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := prompt(fd, "Repeat password: ")
		if err != nil {
			return "", err
		}
		if again != pw {
			return "", errors.New("passwords do not match")
		}
	}
	if pw == "" {
		return Default, nil
	}
	return pw, nil
}

func prompt(fd int, p string) (string, error) {
	fmt.Fprint(os.Stderr, p)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %v", err)
	}
	return string(b), nil
}
