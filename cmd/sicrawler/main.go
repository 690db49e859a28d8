// Command sicrawler crawls the gov.si web and archives the resulting
// site/page/link/image graph through a pluggable store.
package main

import cmd "github.com/frigov/sicrawler/internal/cli"

func main() {
	cmd.Execute()
}
