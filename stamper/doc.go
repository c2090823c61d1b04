// Package stamper gathers template variables from the command line
// sources: Bazel-style workspace status files, YAML or JSON data files,
// NAME=VALUE defines and NAME=FILE imports. LoadStamps parses status
// files into a variable map; Stamps.Apply substitutes single-brace {VAR}
// placeholders from them; Bindings assembles everything into a
// templating.Namespace.
package stamper
