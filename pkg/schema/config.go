package schema

// Config is a validated, immutable configuration. It can only be obtained from a
// Validator, so holding one means every constraint of its descriptor was satisfied.
type Config struct {
	descriptor *Descriptor
	values     map[string]interface{}
}

func newConfig(d *Descriptor, values map[string]interface{}) *Config {
	return &Config{descriptor: d, values: values}
}

// Descriptor returns the descriptor the configuration was validated against.
func (c *Config) Descriptor() *Descriptor {
	return c.descriptor
}

// Has reports whether the property has a value, either supplied or defaulted.
func (c *Config) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Get returns the coerced value of a property.
func (c *Config) Get(name string) (interface{}, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Names returns the names of properties that have values, in declaration order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.values))
	for _, p := range c.descriptor.properties {
		if _, ok := c.values[p.Name]; ok {
			names = append(names, p.Name)
		}
	}
	return names
}

// String returns a STRING or ENUM property, or "" when absent.
func (c *Config) String(name string) string {
	s, _ := c.values[name].(string)
	return s
}

// Int returns an INTEGER property, or 0 when absent.
func (c *Config) Int(name string) int32 {
	i, _ := c.values[name].(int32)
	return i
}

// Long returns a LONG property, or 0 when absent.
func (c *Config) Long(name string) int64 {
	i, _ := c.values[name].(int64)
	return i
}

// Double returns a DOUBLE property, or 0 when absent.
func (c *Config) Double(name string) float64 {
	f, _ := c.values[name].(float64)
	return f
}

// Bool returns a BOOLEAN property, or false when absent.
func (c *Config) Bool(name string) bool {
	b, _ := c.values[name].(bool)
	return b
}

// Nested returns a NESTED property.
func (c *Config) Nested(name string) (*Config, bool) {
	n, ok := c.values[name].(*Config)
	return n, ok
}

// Map returns a copy of the configuration as plain values; nested configurations
// become nested maps.
func (c *Config) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		if n, ok := v.(*Config); ok {
			out[k] = n.Map()
			continue
		}
		out[k] = v
	}
	return out
}
