// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkv"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/catalog/metadata"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/log"
	"github.com/gorilla/mux"
)

const apiV1Path = "/api/v1/"

// maxRequestBytes bounds the size of a request body.
const maxRequestBytes = 4 << 20

func writeJSONResponse(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	res, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(res); err != nil {
		panic(err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// apiError writes err. Malformed requests are reported with status 400;
// everything else is an internal error and is logged.
func apiError(ctx context.Context, err error, w http.ResponseWriter) {
	if errors.Is(err, metadata.ErrInvalidRequest) {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	log.Errorf(ctx, "internal error: %v", err)
	writeJSONResponse(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...interface{}) {
	writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: errors.Newf(format, args...).Error()})
}

// apiServer implements the catalog endpoints under apiV1Path.
type apiServer struct {
	coord *metadata.Coordinator
}

func (a *apiServer) registerRoutes(r *mux.Router) {
	routeDefinitions := []struct {
		endpoint string
		method   string
		handler  http.HandlerFunc
	}{
		{"tables/{schema}/{table}", http.MethodGet, a.getTable},
		{"tables", http.MethodPost, a.createTable},
		{"tables/{schema}/{table}", http.MethodDelete, a.dropTable},
		{"tables/{schema}/{table}/columns", http.MethodPost, a.addColumns},
		{"tables/{schema}/{table}/columns/{column}", http.MethodDelete, a.dropColumn},
		{"tables/{schema}/{table}/columns/{family}/{column}", http.MethodDelete, a.dropColumn},
		{"indexes/{schema}/{index}/state", http.MethodPut, a.updateIndexState},
		{"cache/clear", http.MethodPost, a.clearCache},
		{"version", http.MethodGet, a.version},
	}
	for _, route := range routeDefinitions {
		r.HandleFunc(apiV1Path+route.endpoint, route.handler).Methods(route.method)
	}
}

// tableKey returns the key named by the schema and table path variables and
// the tenant query parameter.
func tableKey(r *http.Request, tableVar string) catalogkeys.Key {
	vars := mux.Vars(r)
	return catalogkeys.MakeKey([]byte(r.URL.Query().Get("tenant")), vars["schema"], vars[tableVar])
}

func timestampParam(r *http.Request, name string) (hlc.Timestamp, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return hlc.Timestamp{}, nil
	}
	ts, err := hlc.ParseTimestamp(s)
	if err != nil {
		return hlc.Timestamp{}, errors.Wrapf(err, "invalid %s", name)
	}
	return ts, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid request body: %v", err)
		return false
	}
	return true
}

// current returns the latest definition of key. A non-success result is
// returned when there is none.
func (a *apiServer) current(
	ctx context.Context, key catalogkeys.Key,
) (*catpb.TableDefinition, catpb.MutationResult, error) {
	res, err := a.coord.GetTable(ctx, metadata.GetTableRequest{Key: key})
	if err != nil || !res.OK() {
		return nil, res, err
	}
	return res.Table, res, nil
}

func (a *apiServer) getTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientTS, err := timestampParam(r, "client_ts")
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	tableTS, err := timestampParam(r, "table_ts")
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	res, err := a.coord.GetTable(ctx, metadata.GetTableRequest{
		Key:             tableKey(r, "table"),
		ClientTimestamp: clientTS,
		TableTimestamp:  tableTS,
	})
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

type createTableRequest struct {
	Table *catpb.TableDefinition `json:"table"`
	// ParentSequenceNumber is the sequence number of the data table an
	// index is created on, as last read by the client. Defaults to the
	// current sequence number.
	ParentSequenceNumber *int64 `json:"parent_sequence_number,omitempty"`
}

// createTable creates the table, view or index of the request body. An
// index is created on the table named by its data_table_name.
func (a *apiServer) createTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body createTableRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Table == nil {
		badRequest(w, "missing table definition")
		return
	}
	def := body.Table
	if !def.Type.Valid() {
		badRequest(w, "invalid table type %d", def.Type)
		return
	}

	var muts []storage.Mutation
	if def.Type == catpb.TableTypeIndex {
		if def.DataTableName == "" {
			badRequest(w, "index %s without data table", def.FullName())
			return
		}
		parentKey := catalogkeys.MakeKey([]byte(def.TenantID), def.SchemaName, def.DataTableName)
		parent, res, err := a.current(ctx, parentKey)
		if err != nil {
			apiError(ctx, err, w)
			return
		}
		if parent == nil {
			if res.Code == catpb.TableNotFound {
				res.Code = catpb.ParentTableNotFound
			}
			writeJSONResponse(w, http.StatusOK, res)
			return
		}
		if body.ParentSequenceNumber != nil {
			p := *parent
			p.SequenceNumber = *body.ParentSequenceNumber
			parent = &p
		}
		muts = catalogkv.MakeCreateIndexMutations(parent, def, hlc.Timestamp{})
	} else {
		muts = catalogkv.MakeTableMutations(def, hlc.Timestamp{})
	}

	req, err := metadata.MakeCreateTableRequest(muts)
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	res, err := a.coord.CreateTable(ctx, req)
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

// dropTable drops the table, view or index named by the path. The type
// parameter defaults to TABLE.
func (a *apiServer) dropTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	typ := catpb.TableTypeTable
	if s := r.URL.Query().Get("type"); s != "" {
		var err error
		if typ, err = catpb.ParseTableType(s); err != nil {
			badRequest(w, "%v", err)
			return
		}
	}
	key := tableKey(r, "table")
	name, err := key.Name()
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	def := &catpb.TableDefinition{
		TenantID:   string(name.TenantID),
		SchemaName: name.Schema,
		TableName:  name.Table,
		Type:       typ,
	}

	var parent *catpb.TableDefinition
	if typ == catpb.TableTypeIndex {
		index, res, err := a.current(ctx, key)
		if err != nil {
			apiError(ctx, err, w)
			return
		}
		if index == nil {
			writeJSONResponse(w, http.StatusOK, res)
			return
		}
		if index.DataTableName != "" {
			parent, _, err = a.current(ctx,
				catalogkeys.MakeKey(name.TenantID, name.Schema, index.DataTableName))
			if err != nil {
				apiError(ctx, err, w)
				return
			}
		}
	}

	req, err := metadata.MakeDropTableRequest(
		catalogkv.MakeDropTableMutations(def, parent, hlc.Timestamp{}), typ)
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	res, err := a.coord.DropTable(ctx, req)
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

type addColumnsRequest struct {
	// SequenceNumber is the sequence number of the table as last read by
	// the client.
	SequenceNumber int64                     `json:"sequence_number"`
	Columns        []*catpb.ColumnDefinition `json:"columns"`
}

func (a *apiServer) addColumns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body addColumnsRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Columns) == 0 {
		badRequest(w, "no columns")
		return
	}
	table, res, err := a.current(ctx, tableKey(r, "table"))
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	if table == nil {
		writeJSONResponse(w, http.StatusOK, res)
		return
	}
	t := *table
	t.SequenceNumber = body.SequenceNumber
	a.mutateColumns(ctx, w, catalogkv.MakeAddColumnMutations(&t, body.Columns, hlc.Timestamp{}),
		a.coord.AddColumn)
}

// dropColumn drops the column named by the path. Primary key columns have
// no family segment.
func (a *apiServer) dropColumn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	seq, err := strconv.ParseInt(r.URL.Query().Get("seq"), 10, 64)
	if err != nil {
		badRequest(w, "invalid seq: %v", err)
		return
	}
	table, res, err := a.current(ctx, tableKey(r, "table"))
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	if table == nil {
		writeJSONResponse(w, http.StatusOK, res)
		return
	}
	vars := mux.Vars(r)
	col := &catpb.ColumnDefinition{Name: vars["column"], Family: vars["family"]}
	if col.Family == "" {
		if c, err := table.PKColumn(col.Name); err == nil {
			col = c
		}
	} else if c, err := table.FamilyColumn(col.Family, col.Name); err == nil {
		col = c
	}
	t := *table
	t.SequenceNumber = seq
	a.mutateColumns(ctx, w, catalogkv.MakeDropColumnMutations(&t, col, hlc.Timestamp{}),
		a.coord.DropColumn)
}

func (a *apiServer) mutateColumns(
	ctx context.Context,
	w http.ResponseWriter,
	muts []storage.Mutation,
	fn func(context.Context, metadata.ColumnRequest) (catpb.MutationResult, error),
) {
	req, err := metadata.MakeColumnRequest(muts)
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	res, err := fn(ctx, req)
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

type indexStateRequest struct {
	State catpb.IndexState `json:"state"`
}

func (a *apiServer) updateIndexState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body indexStateRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if !body.State.Valid() {
		badRequest(w, "invalid index state")
		return
	}
	key := tableKey(r, "index")
	req, err := metadata.MakeUpdateIndexStateRequest([]storage.Mutation{
		catalogkv.MakeIndexStateMutation(key, body.State, hlc.Timestamp{}),
	})
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	res, err := a.coord.UpdateIndexState(ctx, req)
	if err != nil {
		apiError(ctx, err, w)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

func (a *apiServer) clearCache(w http.ResponseWriter, r *http.Request) {
	a.coord.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) version(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, a.coord.GetVersion())
}
