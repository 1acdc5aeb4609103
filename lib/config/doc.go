// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the protonet CLI configuration.
//
// The file is chosen by the --config flag ([LoadFile]) or the
// PROTONET_CONFIG environment variable ([Load]). With neither, [Load]
// returns [Default]. Files ending in .json or .jsonc are read as JSON
// with comments (github.com/tidwall/jsonc); anything else is YAML.
//
// A config may name several boxes under "boxes" and select one with
// "box"; the selected entry overrides the top-level values.
//
//	base_url: https://box.example.com
//	request_timeout: 30s
//	box: work
//	boxes:
//	  work:
//	    base_url: https://work.example.com
//
// ${HOME}, ${XDG_CONFIG_HOME} and ${VAR:-default} are expanded in path
// fields after loading.
package config
