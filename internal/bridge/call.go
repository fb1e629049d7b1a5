package bridge

import "fmt"

// String returns the positional argument i as a string
func (c *Call) String(i int) (string, error) {
	v, err := c.Value(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string", i)
	}
	return s, nil
}

// OptionalString returns argument i or def when absent
func (c *Call) OptionalString(i int, def string) string {
	if i >= len(c.Args) || c.Args[i] == nil {
		return def
	}
	if s, ok := c.Args[i].(string); ok {
		return s
	}
	return def
}

// Map returns the positional argument i as an object
func (c *Call) Map(i int) (map[string]interface{}, error) {
	v, err := c.Value(i)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("argument %d must be an object", i)
	}
	return m, nil
}

// OptionalMap returns argument i or nil when absent
func (c *Call) OptionalMap(i int) map[string]interface{} {
	if i >= len(c.Args) {
		return nil
	}
	if m, ok := c.Args[i].(map[string]interface{}); ok {
		return m
	}
	return nil
}

// Value returns the raw positional argument i
func (c *Call) Value(i int) (interface{}, error) {
	if i >= len(c.Args) {
		return nil, fmt.Errorf("missing argument %d", i)
	}
	return c.Args[i], nil
}
