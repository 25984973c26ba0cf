/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RenderCBOR decodes raw CBOR and renders it as indented JSON for logs.
// Byte strings are shown as h'..' and map keys are stringified.
func RenderCBOR(raw []byte) (string, error) {
	var decoded any
	if err := cbor.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode CBOR: %w", err)
	}
	pretty, err := json.MarshalIndent(jsonFriendly(decoded), "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

// jsonFriendly rewrites decoded CBOR values into types encoding/json accepts.
// encoding/json sorts map keys, so the output is stable.
func jsonFriendly(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = jsonFriendly(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[cborKey(key)] = jsonFriendly(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = jsonFriendly(val)
		}
		return out
	case []byte:
		return fmt.Sprintf("h'%x'", v)
	case cbor.Tag:
		return map[string]any{"tag": v.Number, "content": jsonFriendly(v.Content)}
	default:
		return v
	}
}

func cborKey(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case []byte:
		return fmt.Sprintf("h'%x'", k)
	default:
		return fmt.Sprint(k)
	}
}
