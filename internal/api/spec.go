package api

import _ "embed"

//go:generate go tool oapi-codegen -config cfg.yaml openapi.yaml

// Spec is the OpenAPI document the generated code was built from.
//
//go:embed openapi.yaml
var Spec []byte
