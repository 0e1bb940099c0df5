package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/photonerr"
)

// EnvVarName computes the environment variable a constructor parameter is
// bound to: the photon name and parameter name joined into UPPER_SNAKE_CASE,
// per the external interfaces naming scheme.
func EnvVarName(photonName, paramName string) string {
	return strings.ToUpper(toSnake(photonName) + "_" + toSnake(paramName))
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' && i > 0 {
			prev := rune(s[i-1])
			if prev != '_' && !(prev >= 'A' && prev <= 'Z') {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Backfill builds a configuration record for photonName from, in priority
// order: the saved configuration record, then environment variables, then
// declared defaults. It returns NotConfigured with the list of missing
// variable names when a required parameter has neither a saved value, an
// environment override, nor a default.
func (s *Store) Backfill(photonName string, schema []catalog.ConfigParam, saved map[string]any) (map[string]any, error) {
	record := map[string]any{}
	for k, v := range saved {
		record[k] = v
	}

	var missing []string
	for _, param := range schema {
		if _, ok := record[param.Name]; ok {
			continue
		}
		envName := EnvVarName(photonName, param.Name)
		if raw, ok := os.LookupEnv(envName); ok {
			val, err := coerce(param.Type, raw)
			if err != nil {
				return nil, photonerr.Wrapf(photonerr.NotConfigured, err, "parse %s", envName)
			}
			record[param.Name] = val
			continue
		}
		if param.Default != nil {
			record[param.Name] = param.Default
			continue
		}
		if param.Required {
			missing = append(missing, EnvVarName(photonName, param.Name))
		}
	}

	if len(missing) > 0 {
		return record, photonerr.Newf(photonerr.NotConfigured, "missing required configuration for %s", photonName).
			WithDetail(map[string]any{"missing": missing})
	}
	return record, nil
}

func coerce(paramType, raw string) (any, error) {
	switch paramType {
	case "number":
		return strconv.ParseFloat(raw, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

// EnvHint formats the environment variable name a caller should set to
// satisfy a parameter together with its type, e.g. "WEATHER_API_KEY
// (string)". Backfill's NotConfigured detail lists bare variable names and
// does not use it.
func EnvHint(photonName string, param catalog.ConfigParam) string {
	return fmt.Sprintf("%s (%s)", EnvVarName(photonName, param.Name), param.Type)
}
