//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolBody struct {
	ID             int64   `json:"id"`
	Status         string  `json:"status"`
	UserLogin      string  `json:"user_login"`
	ModeratorLogin *string `json:"moderator_login"`
	PlayerLogin    *string `json:"player_login"`
	Popularity     *int    `json:"popularity"`
	MapCount       int     `json:"map_count"`
	Maps           []struct {
		Position int `json:"position"`
		Map      struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"map"`
	} `json:"maps"`
}

func TestPoolLifecycle(t *testing.T) {
	env := testutil.Setup(t)
	owner := env.Login("owner", false)
	staff := env.Login("moderator", true)
	five, seven := env.SeedMap("Lost Temple"), env.SeedMap("Python")

	resp := env.Do(http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": five.ID}, owner)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pool poolBody
	env.DecodeBody(resp, &pool)
	assert.Equal(t, "draft", pool.Status)
	assert.Equal(t, 1, pool.MapCount)
	path := fmt.Sprintf("/map-pools/%d", pool.ID)

	resp = env.Do(http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": five.ID}, owner)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.Do(http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": seven.ID}, owner)
	env.DecodeBody(resp, &pool)
	assert.Equal(t, 2, pool.MapCount)

	resp = env.Do(http.MethodPut, path, map[string]string{"player_login": "Flash"}, owner)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.Do(http.MethodPut, path+"/submit", nil, owner)
	env.DecodeBody(resp, &pool)
	assert.Equal(t, "submitted", pool.Status)

	resp = env.Do(http.MethodPut, path+"/moderate", map[string]string{"action": "complete"}, staff)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.DecodeBody(resp, &pool)
	assert.Equal(t, "completed", pool.Status)
	require.NotNil(t, pool.Popularity)
	assert.Equal(t, 5, *pool.Popularity)
	require.NotNil(t, pool.ModeratorLogin)
	assert.Equal(t, "moderator", *pool.ModeratorLogin)

	resp = env.Do(http.MethodGet, path, nil, owner)
	env.DecodeBody(resp, &pool)
	require.Len(t, pool.Maps, 2)
	assert.Equal(t, five.ID, pool.Maps[0].Map.ID)
	assert.Equal(t, 1, pool.Maps[0].Position)
	assert.Equal(t, 2, pool.Maps[1].Position)

	events, err := env.Repos.Outbox.FetchUnpublished(context.Background(), env.DB, 10)
	require.NoError(t, err)
	var types []domain.EventType
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []domain.EventType{domain.EventPoolCreated, domain.EventPoolSubmitted, domain.EventPoolCompleted}, types)
}

func TestConcurrentAddToDraft(t *testing.T) {
	env := testutil.Setup(t)
	owner := env.Login("owner", false)

	const n = 12
	maps := make([]*domain.Map, n)
	for i := range maps {
		maps[i] = env.SeedMap(fmt.Sprintf("Map %d", i))
	}

	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := env.Do(http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": maps[i].ID}, owner)
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusCreated, code, "request %d", i)
	}

	var count int
	require.NoError(t, env.DB.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM map_pools WHERE status = 'draft'`).Scan(&count))
	assert.Equal(t, 1, count, "exactly one draft")

	rows, err := env.DB.Query(context.Background(), `SELECT position FROM map_pool_maps`)
	require.NoError(t, err)
	var positions []int
	for rows.Next() {
		var p int
		require.NoError(t, rows.Scan(&p))
		positions = append(positions, p)
	}
	rows.Close()
	sort.Ints(positions)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, positions, "positions are 1..N without gaps or duplicates")
}

func TestListPools_DateRangeAndVisibility(t *testing.T) {
	env := testutil.Setup(t)
	owner := env.Login("owner", false)
	other := env.Login("other", false)
	staff := env.Login("moderator", true)

	submit := func(cookie *http.Cookie) int64 {
		m := env.SeedMap("M")
		resp := env.Do(http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": m.ID}, cookie)
		var p poolBody
		env.DecodeBody(resp, &p)
		path := fmt.Sprintf("/map-pools/%d", p.ID)
		env.Do(http.MethodPut, path, map[string]string{"player_login": "x"}, cookie).Body.Close()
		resp = env.Do(http.MethodPut, path+"/submit", nil, cookie)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return p.ID
	}
	mine := submit(owner)
	theirs := submit(other)

	list := func(cookie *http.Cookie, query string) []int64 {
		resp := env.Do(http.MethodGet, "/map-pools"+query, nil, cookie)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var pools []poolBody
		env.DecodeBody(resp, &pools)
		ids := make([]int64, 0, len(pools))
		for _, p := range pools {
			ids = append(ids, p.ID)
		}
		return ids
	}

	assert.Equal(t, []int64{mine}, list(owner, ""))
	assert.Equal(t, []int64{mine, theirs}, list(staff, ""))

	today := time.Now().UTC().Format(domain.DateLayout)
	assert.Equal(t, []int64{mine, theirs}, list(staff, "?start_date="+today+"&end_date="+today))
	assert.Empty(t, list(staff, "?start_date=2000-01-01&end_date=2000-01-02"))
	assert.Empty(t, list(staff, "?status=completed"))
}

func TestSoftDeletedMapStaysInPool(t *testing.T) {
	env := testutil.Setup(t)
	owner := env.Login("owner", false)
	staff := env.Login("moderator", true)
	m := env.SeedMap("Doomed")

	resp := env.Do(http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": m.ID}, owner)
	var pool poolBody
	env.DecodeBody(resp, &pool)

	resp = env.Do(http.MethodDelete, fmt.Sprintf("/maps/%d", m.ID), nil, staff)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.Do(http.MethodGet, fmt.Sprintf("/maps/%d", m.ID), nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.Do(http.MethodGet, fmt.Sprintf("/map-pools/%d", pool.ID), nil, owner)
	env.DecodeBody(resp, &pool)
	require.Len(t, pool.Maps, 1)
	assert.Equal(t, "deleted", pool.Maps[0].Map.Status)

	resp = env.Do(http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": m.ID}, owner)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "deleted maps cannot be added")
}
