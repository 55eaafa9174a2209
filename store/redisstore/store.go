package redisstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	identity "github.com/stocktrack/identity"
)

const (
	defaultPrefix    = "identity:"
	defaultRetention = 24 * time.Hour
)

// ErrDuplicateUsername is returned by CreateUser when the username index
// already holds the name.
var ErrDuplicateUsername = errors.New("username already exists")

// consumeRefreshScript is the atomic conditional find-and-delete. It returns
// the stored JSON record on success and false on any non-match; the caller
// cannot distinguish which condition failed, by design.
const consumeRefreshScript = `
local v = redis.call("GET", KEYS[1])
if not v then
  return false
end
local rec = cjson.decode(v)
if rec.u ~= ARGV[1] then
  return false
end
if tonumber(rec.iat) >= tonumber(ARGV[2]) then
  return false
end
redis.call("DEL", KEYS[1])
return v
`

var consumeRefreshLua = redis.NewScript(consumeRefreshScript)

// updateIfExistsScript applies HSET pairs only when the key exists, so
// best-effort updates never resurrect a deleted record.
const updateIfExistsScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
for i = 1, #ARGV, 2 do
  redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`

var updateIfExistsLua = redis.NewScript(updateIfExistsScript)

// Config controls key layout and refresh retention.
type Config struct {
	// Prefix namespaces every key. Defaults to "identity:".
	Prefix string
	// RetentionHorizon is the TTL applied to refresh records. Defaults to
	// 24 hours.
	RetentionHorizon time.Duration
}

// Store implements [identity.AccountStore] over Redis. Instances are
// immutable and safe for concurrent use.
type Store struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// New wraps an existing Redis client.
func New(rdb *redis.Client, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.RetentionHorizon <= 0 {
		cfg.RetentionHorizon = defaultRetention
	}
	return &Store{
		rdb:       rdb,
		prefix:    cfg.Prefix,
		retention: cfg.RetentionHorizon,
	}
}

func (s *Store) usernamesKey() string          { return s.prefix + "usernames" }
func (s *Store) userKey(id uuid.UUID) string   { return s.prefix + "user:" + id.String() }
func (s *Store) roleKey(id uuid.UUID) string   { return s.prefix + "role:" + id.String() }
func (s *Store) refreshKey(id []byte) string {
	return s.prefix + "refresh:" + base64.RawURLEncoding.EncodeToString(id)
}

type refreshDoc struct {
	U   string `json:"u"`
	IAT int64  `json:"iat"` // unix milliseconds
}

// FindUserByUsername resolves the username through the uniqueness index and
// loads the account. Returns (nil, nil) when the name is unknown.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*identity.UserRecord, error) {
	uid, err := s.rdb.HGet(ctx, s.usernamesKey(), username).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("username index lookup: %w", err)
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		return nil, fmt.Errorf("corrupt username index entry %q: %w", uid, err)
	}
	return s.FindUserByID(ctx, id)
}

// FindUserByID loads an account hash. Returns (nil, nil) when absent.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*identity.UserRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeUser(id, fields)
}

// RolesByIDs fetches role hashes in one pipeline. Unknown identifiers are
// skipped; a malformed stored mask is an error, never a zero default.
func (s *Store) RolesByIDs(ctx context.Context, ids []uuid.UUID) ([]identity.RoleRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	pipe := s.rdb.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.roleKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("role batch fetch: %w", err)
	}

	roles := make([]identity.RoleRecord, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("role fetch %s: %w", ids[i], err)
		}
		if len(fields) == 0 {
			continue
		}
		role, err := decodeRole(ids[i], fields)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

// InsertRefreshToken stores a refresh record with the retention-horizon TTL.
// NX guards the (astronomically unlikely) identifier collision.
func (s *Store) InsertRefreshToken(ctx context.Context, rec identity.RefreshRecord) error {
	doc, err := json.Marshal(refreshDoc{
		U:   rec.UserID.String(),
		IAT: rec.IssuedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, s.refreshKey(rec.TokenID), doc, s.retention).Result()
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	if !ok {
		return errors.New("refresh token identifier collision")
	}
	return nil
}

// ConsumeRefreshToken atomically finds and deletes the record matching
// (tokenID, userID) whose age is at least minAge. Returns (nil, nil) on any
// non-match; exactly one of a set of racing calls can succeed.
func (s *Store) ConsumeRefreshToken(ctx context.Context, tokenID []byte, userID uuid.UUID, minAge time.Duration) (*identity.RefreshRecord, error) {
	cutoff := time.Now().Add(-minAge).UnixMilli()

	raw, err := consumeRefreshLua.Run(ctx, s.rdb,
		[]string{s.refreshKey(tokenID)},
		userID.String(), strconv.FormatInt(cutoff, 10),
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	blob, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("consume refresh token: unexpected reply %T", raw)
	}
	var doc refreshDoc
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return nil, fmt.Errorf("corrupt refresh record: %w", err)
	}

	return &identity.RefreshRecord{
		TokenID:  tokenID,
		UserID:   userID,
		IssuedAt: time.UnixMilli(doc.IAT),
	}, nil
}

// UpdateLastLogin advances the last-login stamp if the account still exists.
func (s *Store) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := updateIfExistsLua.Run(ctx, s.rdb,
		[]string{s.userKey(id)},
		"last_login", strconv.FormatInt(at.UnixMilli(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential, optionally advancing
// PasswordChangedAt. The bool result reports whether the account existed.
func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, changedAt *time.Time) (bool, error) {
	args := []interface{}{"password", hash}
	if changedAt != nil {
		args = append(args, "password_changed", strconv.FormatInt(changedAt.UnixMilli(), 10))
	}

	n, err := updateIfExistsLua.Run(ctx, s.rdb, []string{s.userKey(id)}, args...).Int64()
	if err != nil {
		return false, fmt.Errorf("update password hash: %w", err)
	}
	return n == 1, nil
}

// CreateUser writes a new account and claims its username in the index.
// Used by provisioning (bootstrap admin) and tests; the engine itself never
// creates users.
func (s *Store) CreateUser(ctx context.Context, user identity.UserRecord) error {
	claimed, err := s.rdb.HSetNX(ctx, s.usernamesKey(), user.Username, user.UserID.String()).Result()
	if err != nil {
		return fmt.Errorf("claim username: %w", err)
	}
	if !claimed {
		return ErrDuplicateUsername
	}

	if err := s.rdb.HSet(ctx, s.userKey(user.UserID), encodeUser(user)).Err(); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	return nil
}

// CreateRole writes a role node. Role administration is an external
// collaborator concern; this exists for provisioning and tests.
func (s *Store) CreateRole(ctx context.Context, role identity.RoleRecord) error {
	if err := s.rdb.HSet(ctx, s.roleKey(role.RoleID), encodeRole(role)).Err(); err != nil {
		return fmt.Errorf("write role: %w", err)
	}
	return nil
}

// UserCount reports how many usernames the index holds. Provisioning uses
// it to decide whether the bootstrap admin is needed.
func (s *Store) UserCount(ctx context.Context) (int64, error) {
	n, err := s.rdb.HLen(ctx, s.usernamesKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func encodeUser(user identity.UserRecord) map[string]interface{} {
	rolesJSON, _ := json.Marshal(uuidStrings(user.Roles))
	fields := map[string]interface{}{
		"username": user.Username,
		"roles":    string(rolesJSON),
	}
	if user.PasswordHash != "" {
		fields["password"] = user.PasswordHash
	}
	if !user.PasswordChangedAt.IsZero() {
		fields["password_changed"] = strconv.FormatInt(user.PasswordChangedAt.UnixMilli(), 10)
	}
	if !user.LastLoginAt.IsZero() {
		fields["last_login"] = strconv.FormatInt(user.LastLoginAt.UnixMilli(), 10)
	}
	if user.LoginDisabled != nil {
		fields["login_disabled"] = *user.LoginDisabled
	}
	return fields
}

func decodeUser(id uuid.UUID, fields map[string]string) (*identity.UserRecord, error) {
	user := &identity.UserRecord{
		UserID:       id,
		Username:     fields["username"],
		PasswordHash: fields["password"],
	}

	if v, ok := fields["password_changed"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt password_changed for %s: %w", id, err)
		}
		user.PasswordChangedAt = time.UnixMilli(ms)
	}
	if v, ok := fields["last_login"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt last_login for %s: %w", id, err)
		}
		user.LastLoginAt = time.UnixMilli(ms)
	}
	if v, ok := fields["login_disabled"]; ok {
		reason := v
		user.LoginDisabled = &reason
	}

	if v, ok := fields["roles"]; ok && v != "" {
		roles, err := parseUUIDList(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt role list for %s: %w", id, err)
		}
		user.Roles = roles
	}

	return user, nil
}

func encodeRole(role identity.RoleRecord) map[string]interface{} {
	inheritJSON, _ := json.Marshal(uuidStrings(role.Inherit))
	return map[string]interface{}{
		"name":        role.Name,
		"permissions": strconv.FormatUint(role.Permissions, 10),
		"inherit":     string(inheritJSON),
	}
}

func decodeRole(id uuid.UUID, fields map[string]string) (*identity.RoleRecord, error) {
	role := &identity.RoleRecord{
		RoleID: id,
		Name:   fields["name"],
	}

	// An absent permissions field contributes zero, matching the role
	// schema variant that omits it. A present-but-malformed value is an
	// error: permission math never silently defaults.
	if v, ok := fields["permissions"]; ok && v != "" {
		mask, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt permission mask for role %s: %w", id, err)
		}
		role.Permissions = mask
	}

	if v, ok := fields["inherit"]; ok && v != "" {
		inherit, err := parseUUIDList(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt inherit list for role %s: %w", id, err)
		}
		role.Inherit = inherit
	}

	return role, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDList(blob string) ([]uuid.UUID, error) {
	var raw []string
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
