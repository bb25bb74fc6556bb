// Package redis keeps ticket inventory counters in Redis so every API
// instance sees the same sold counts.
package redis

import (
	"context"
	"sort"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

const defaultKeyPrefix = "hostly:sold:"

// reserveScript checks every line against its capacity before incrementing
// any counter. It returns {1} on success or {0, index, remaining} for the
// first line that does not fit.
var reserveScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	local capacity = tonumber(ARGV[2 * i - 1])
	local qty = tonumber(ARGV[2 * i])
	local sold = tonumber(redis.call("GET", key) or "0")
	if sold + qty > capacity then
		local left = capacity - sold
		if left < 0 then left = 0 end
		return {0, i, left}
	end
end
for i, key in ipairs(KEYS) do
	redis.call("INCRBY", key, tonumber(ARGV[2 * i]))
end
return {1}
`)

// releaseScript decrements counters without letting them go negative.
var releaseScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	local n = redis.call("DECRBY", key, tonumber(ARGV[i]))
	if n < 0 then redis.call("SET", key, 0) end
end
return 1
`)

var _ ticket.Inventory = (*Inventory)(nil)

// Inventory implements ticket.Inventory with one integer key per ticket type.
type Inventory struct {
	client *redis.Client
	prefix string
}

// NewInventory returns an Inventory using the given client.
func NewInventory(client *redis.Client) *Inventory {
	return &Inventory{client: client, prefix: defaultKeyPrefix}
}

// NewClient parses a redis:// URL and creates a client.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return redis.NewClient(opts), nil
}

func (i *Inventory) key(id string) string { return i.prefix + id }

// Sold implements ticket.Inventory.
func (i *Inventory) Sold(ctx context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for n, id := range ids {
		keys[n] = i.key(id)
	}
	vals, err := i.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget sold counters")
	}
	for n, id := range ids {
		out[id] = 0
		s, ok := vals[n].(string)
		if !ok {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parse sold counter %s", id)
		}
		out[id] = v
	}
	return out, nil
}

// Reserve implements ticket.Inventory.
func (i *Inventory) Reserve(ctx context.Context, capacities, quantities map[string]int) error {
	ids := sortedIDs(quantities)
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	args := make([]any, 0, 2*len(ids))
	for n, id := range ids {
		keys[n] = i.key(id)
		args = append(args, capacities[id], quantities[id])
	}

	res, err := reserveScript.Run(ctx, i.client, keys, args...).Int64Slice()
	if err != nil {
		return errors.Wrap(err, "run reserve script")
	}
	if len(res) == 0 {
		return errors.New("empty reserve script result")
	}
	if res[0] == 1 {
		return nil
	}
	if len(res) < 3 || res[1] < 1 || int(res[1]) > len(ids) {
		return errors.Errorf("unexpected reserve script result %v", res)
	}
	id := ids[res[1]-1]
	return &ticket.InsufficientInventoryError{
		TicketTypeID: id,
		Requested:    quantities[id],
		Remaining:    int(res[2]),
	}
}

// Release implements ticket.Inventory.
func (i *Inventory) Release(ctx context.Context, quantities map[string]int) error {
	ids := sortedIDs(quantities)
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	args := make([]any, len(ids))
	for n, id := range ids {
		keys[n] = i.key(id)
		args[n] = quantities[id]
	}
	if err := releaseScript.Run(ctx, i.client, keys, args...).Err(); err != nil {
		return errors.Wrap(err, "run release script")
	}
	return nil
}

// Load seeds counters that do not exist yet, typically with totals
// recovered from persisted orders. Existing counters are left alone so a
// restarting replica does not clobber reservations made by the others.
func (i *Inventory) Load(ctx context.Context, sold map[string]int) error {
	if len(sold) == 0 {
		return nil
	}
	if _, err := i.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for id, n := range sold {
			p.SetNX(ctx, i.key(id), n, 0)
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "seed sold counters")
	}
	return nil
}

// sortedIDs returns the ids with a positive quantity in a stable order.
func sortedIDs(quantities map[string]int) []string {
	ids := make([]string, 0, len(quantities))
	for id, qty := range quantities {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
