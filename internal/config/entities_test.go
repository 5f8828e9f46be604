package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesoserve/internal/units"
)

const validDoc = `
dataSources:
  weewx:
    dialect: sqlite
    dsn: ":memory:"
entities:
  raw:
    dataSource: weewx
    tableName: raw
    primaryKey: dateTime
    columns:
      dateTime: {unit: s}
      outTemp: {unit: f}
      barometer: {unit: inHg}
      windDir: {unit: deg}
    accessControl:
      update:
        allow: true
        securityKey: hunter2
    retentionPolicy:
      type: window
      trigger: update
      windowSize: 86400
  archive:
    dataSource: weewx
    tableName: archive
    primaryKey: dateTime
    columns:
      dateTime: {unit: s}
      outTemp: {unit: f}
`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(validDoc))
	require.NoError(t, err)

	assert.Len(t, doc.DataSources, 1)
	assert.Equal(t, "sqlite", doc.DataSources["weewx"].Dialect)

	raw, ok := doc.Entity("raw")
	require.True(t, ok)
	assert.Equal(t, "raw", raw.TableName)
	assert.Equal(t, "dateTime", raw.PrimaryKey)
	assert.Equal(t, units.S, raw.PrimaryKeyUnit())
	assert.Equal(t, units.F, raw.Columns["outTemp"].Unit)
	assert.True(t, raw.AccessControl.Update.Allow)
	assert.Equal(t, "hunter2", raw.AccessControl.Update.SecurityKey)

	require.NotNil(t, raw.RetentionPolicy)
	assert.Equal(t, "window", raw.RetentionPolicy.Type)
	assert.Equal(t, RetentionTriggerUpdate, raw.RetentionPolicy.Trigger)
	assert.Equal(t, int64(86400), raw.RetentionPolicy.WindowSize)

	archive, ok := doc.Entity("archive")
	require.True(t, ok)
	assert.Nil(t, archive.RetentionPolicy)
	assert.False(t, archive.AccessControl.Update.Allow)

	_, ok = doc.Entity("missing")
	assert.False(t, ok)
}

func TestParseDocumentValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			"invalid yaml",
			"entities: [",
			"parse entity config",
		},
		{
			"missing table name",
			`
dataSources:
  ds: {dialect: sqlite, dsn: ":memory:"}
entities:
  raw:
    dataSource: ds
    primaryKey: dateTime
    columns:
      dateTime: {unit: s}
`,
			"tableName is required",
		},
		{
			"unknown data source",
			`
entities:
  raw:
    dataSource: nope
    tableName: raw
    primaryKey: dateTime
    columns:
      dateTime: {unit: s}
`,
			`unknown dataSource "nope"`,
		},
		{
			"no columns",
			`
dataSources:
  ds: {dialect: sqlite, dsn: ":memory:"}
entities:
  raw:
    dataSource: ds
    tableName: raw
    primaryKey: dateTime
`,
			"at least one column is required",
		},
		{
			"primary key not a column",
			`
dataSources:
  ds: {dialect: sqlite, dsn: ":memory:"}
entities:
  raw:
    dataSource: ds
    tableName: raw
    primaryKey: dateTime
    columns:
      outTemp: {unit: f}
`,
			`primaryKey column "dateTime" is not defined`,
		},
		{
			"unsupported retention type",
			`
dataSources:
  ds: {dialect: sqlite, dsn: ":memory:"}
entities:
  raw:
    dataSource: ds
    tableName: raw
    primaryKey: dateTime
    columns:
      dateTime: {unit: s}
    retentionPolicy:
      type: forever
      windowSize: 10
`,
			`unsupported retention policy type "forever"`,
		},
		{
			"zero window size",
			`
dataSources:
  ds: {dialect: sqlite, dsn: ":memory:"}
entities:
  raw:
    dataSource: ds
    tableName: raw
    primaryKey: dateTime
    columns:
      dateTime: {unit: s}
    retentionPolicy:
      type: window
      windowSize: 0
`,
			"windowSize must be positive",
		},
		{
			"unsupported trigger",
			`
dataSources:
  ds: {dialect: sqlite, dsn: ":memory:"}
entities:
  raw:
    dataSource: ds
    tableName: raw
    primaryKey: dateTime
    columns:
      dateTime: {unit: s}
    retentionPolicy:
      type: window
      trigger: hourly
      windowSize: 10
`,
			`unsupported retention trigger "hourly"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
