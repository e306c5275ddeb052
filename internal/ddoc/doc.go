// Package ddoc models design documents: trees of nested mappings whose
// string leaves are module source code.
//
// A Document acts as a virtual filesystem for require. It owns the module
// caches of the execution contexts it has been loaded into, so that cached
// exports live exactly as long as the document does and no global state is
// shared between documents.
//
// Documents can be decoded from JSON, YAML or TOML, optionally gzip or zstd
// compressed:
//
//	doc, err := ddoc.LoadFile("design.yaml.zst")
//	if err != nil {
//		return err
//	}
//	ids, _ := doc.ModuleIDs("lib/**")
package ddoc
