// SPDX-License-Identifier: MPL-2.0

// inferpack builds and bootstraps self-contained runtime environments for
// inference services.
package main

import cmd "inferpack-cli/cmd/inferpack"

func main() {
	cmd.Execute()
}
