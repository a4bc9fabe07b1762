package harvest

import "github.com/ibeckermayer/xharvest/internal/types"

// Cache accumulates records by stable key.
// Later sightings of a key overwrite the stored record, but the key keeps its
// first-seen position so output order is deterministic.
type Cache struct {
	schema  types.Schema
	order   []string
	records map[string]types.Record
}

// NewCache creates an empty cache that only accepts records valid for schema
func NewCache(schema types.Schema) *Cache {
	return &Cache{
		schema:  schema,
		records: make(map[string]types.Record),
	}
}

// Merge inserts or overwrites each acceptable record and returns the cache
// size before and after.
func (c *Cache) Merge(recs []types.Record) (prev, next int) {
	prev = len(c.order)
	for _, r := range recs {
		if !c.schema.Accepts(r) {
			continue
		}
		if _, ok := c.records[r.Key]; !ok {
			c.order = append(c.order, r.Key)
		}
		c.records[r.Key] = c.schema.Normalize(r)
	}
	return prev, len(c.order)
}

// Len returns the number of distinct keys
func (c *Cache) Len() int {
	return len(c.order)
}

// Get returns the record stored for key
func (c *Cache) Get(key string) (types.Record, bool) {
	r, ok := c.records[key]
	return r, ok
}

// Values returns a copy of every record in first-seen order
func (c *Cache) Values() []types.Record {
	out := make([]types.Record, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.records[k].Clone())
	}
	return out
}
