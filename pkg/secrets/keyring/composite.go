package keyring

import "fmt"

// compositeProvider tries each backend in order and sticks with the first
// one that reports itself available.
type compositeProvider struct {
	providers []Provider
	active    Provider
}

// NewCompositeProvider returns a Provider that falls back across every
// backend registered for the running platform.
func NewCompositeProvider() Provider {
	return &compositeProvider{
		providers: []Provider{NewZalandoKeyringProvider()},
	}
}

func (c *compositeProvider) getActiveProvider() Provider {
	if c.active != nil && c.active.IsAvailable() {
		return c.active
	}
	c.active = nil
	for _, p := range c.providers {
		if p.IsAvailable() {
			c.active = p
			return p
		}
	}
	return nil
}

func (c *compositeProvider) Name() string {
	if p := c.getActiveProvider(); p != nil {
		return p.Name()
	}
	return "None Available"
}

func (c *compositeProvider) IsAvailable() bool {
	return c.getActiveProvider() != nil
}

func (c *compositeProvider) Set(service, key, value string) error {
	p := c.getActiveProvider()
	if p == nil {
		return fmt.Errorf("no keyring provider available")
	}
	return p.Set(service, key, value)
}

func (c *compositeProvider) Get(service, key string) (string, error) {
	p := c.getActiveProvider()
	if p == nil {
		return "", fmt.Errorf("no keyring provider available")
	}
	return p.Get(service, key)
}

func (c *compositeProvider) Delete(service, key string) error {
	p := c.getActiveProvider()
	if p == nil {
		return fmt.Errorf("no keyring provider available")
	}
	return p.Delete(service, key)
}

func (c *compositeProvider) DeleteAll(service string) error {
	p := c.getActiveProvider()
	if p == nil {
		return fmt.Errorf("no keyring provider available")
	}
	return p.DeleteAll(service)
}
