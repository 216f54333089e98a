package cmd

import (
	"strings"

	"github.com/fatih/color"
)

const banner = `
                      _                  __  __
  __ _  ___ _______ _(_)__  ___  ___ ___/ /_/ /____
 /  ' \/ _ ` + "`" + `/ __/ / / _ \/ _ \/ -_) __/ __/ -_)
/_/_/_/\_,_/_/ /_/_/\___/_//_/\__/\__/\__/\__/`

func getBanner(noColor bool) string {
	c := color.New(color.FgMagenta)
	if noColor {
		c.DisableColor()
	}
	return c.Sprint(strings.TrimPrefix(banner, "\n"))
}
