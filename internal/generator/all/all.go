// Package all wires the built-in generators into the registry. Import for
// side effects:
//
//	import _ "synthpipe/internal/generator/all"
package all

import (
	_ "synthpipe/internal/generator/causal"
	_ "synthpipe/internal/generator/marginal"
)
