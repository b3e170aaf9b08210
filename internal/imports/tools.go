// Package imports links every tool package into the binary so their init functions register them.
package imports

import (
	_ "github.com/sammcj/mcp-excel/internal/tools/excel"
	_ "github.com/sammcj/mcp-excel/internal/tools/toolhelp"
)
