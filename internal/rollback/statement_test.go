package rollback

import (
	"strings"
	"testing"
	"time"

	"github.com/nethalo/dbexec/internal/mysql"
)

func ordersTable() *mysql.TableColumns {
	return &mysql.TableColumns{
		Database: "shop",
		Table:    "orders",
		Columns: []mysql.ColumnInfo{
			{Name: "id", DataType: "int", ColumnType: "int unsigned", Position: 1},
			{Name: "status", DataType: "varchar", ColumnType: "varchar(20)", Position: 2},
			{Name: "note", DataType: "text", ColumnType: "text", Nullable: true, Position: 3},
		},
		PrimaryKey: []string{"id"},
	}
}

func eventsTable() *mysql.TableColumns {
	return &mysql.TableColumns{
		Database: "shop",
		Table:    "events",
		Columns: []mysql.ColumnInfo{
			{Name: "id", DataType: "bigint", ColumnType: "bigint", Position: 1},
			{Name: "seen_at", DataType: "timestamp", ColumnType: "timestamp", Nullable: true, Position: 2},
		},
		PrimaryKey: []string{"id"},
	}
}

func TestRowChange_Reverse(t *testing.T) {
	noPK := ordersTable()
	noPK.PrimaryKey = nil

	tests := []struct {
		name    string
		change  rowChange
		want    string
		wantErr bool
	}{
		{
			name:   "insert becomes delete by primary key",
			change: rowChange{kind: changeInsert, table: ordersTable(), after: []any{int32(7), "new", nil}},
			want:   "DELETE FROM `shop`.`orders` WHERE `id`=7 LIMIT 1;",
		},
		{
			name:   "delete becomes insert of every column",
			change: rowChange{kind: changeDelete, table: ordersTable(), before: []any{int32(7), "paid", "it's done"}},
			want:   "INSERT INTO `shop`.`orders` (`id`, `status`, `note`) VALUES (7, 'paid', 'it\\'s done');",
		},
		{
			name: "update restores before image matched on after image",
			change: rowChange{kind: changeUpdate, table: ordersTable(),
				before: []any{int32(7), "new", nil},
				after:  []any{int32(7), "paid", nil}},
			want: "UPDATE `shop`.`orders` SET `id`=7, `status`='new', `note`=NULL WHERE `id`=7 LIMIT 1;",
		},
		{
			name:   "no primary key matches every column, NULL with IS NULL",
			change: rowChange{kind: changeInsert, table: noPK, after: []any{int32(7), "new", nil}},
			want:   "DELETE FROM `shop`.`orders` WHERE `id`=7 AND `status`='new' AND `note` IS NULL LIMIT 1;",
		},
		{
			name:   "negative value in unsigned int column is corrected",
			change: rowChange{kind: changeInsert, table: ordersTable(), after: []any{int32(-1), "x", nil}},
			want:   "DELETE FROM `shop`.`orders` WHERE `id`=4294967295 LIMIT 1;",
		},
		{
			name: "timestamp restored as an instant",
			change: rowChange{kind: changeUpdate, table: eventsTable(),
				before: []any{int64(1), "2024-01-01 00:00:00"},
				after:  []any{int64(1), "2024-06-30 12:00:00"}},
			want: "UPDATE `shop`.`events` SET `id`=1, `seen_at`=FROM_UNIXTIME(1704067200) WHERE `id`=1 LIMIT 1;",
		},
		{
			name:    "row wider than table",
			change:  rowChange{kind: changeDelete, table: ordersTable(), before: []any{int32(1), "a", "b", "c"}},
			wantErr: true,
		},
		{
			name: "primary key column missing from layout",
			change: rowChange{kind: changeInsert, after: []any{int32(1), "a", nil}, table: &mysql.TableColumns{
				Database: "shop", Table: "orders", Columns: ordersTable().Columns, PrimaryKey: []string{"uuid"},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.change.reverse()
			if tt.wantErr {
				if err == nil {
					t.Errorf("reverse() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("reverse() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("reverse() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name string
		col  mysql.ColumnInfo
		v    any
		want string
	}{
		{"null", mysql.ColumnInfo{Name: "c"}, nil, "NULL"},
		{"signed tinyint", mysql.ColumnInfo{Name: "c", DataType: "tinyint", ColumnType: "tinyint(4)"}, int8(-5), "-5"},
		{"unsigned tinyint", mysql.ColumnInfo{Name: "c", DataType: "tinyint", ColumnType: "tinyint unsigned"}, int8(-1), "255"},
		{"unsigned smallint", mysql.ColumnInfo{Name: "c", DataType: "smallint", ColumnType: "smallint unsigned"}, int16(-2), "65534"},
		{"unsigned mediumint", mysql.ColumnInfo{Name: "c", DataType: "mediumint", ColumnType: "mediumint unsigned"}, int32(-1), "16777215"},
		{"unsigned bigint", mysql.ColumnInfo{Name: "c", DataType: "bigint", ColumnType: "bigint unsigned"}, int64(-1), "18446744073709551615"},
		{"float32 keeps its precision", mysql.ColumnInfo{Name: "c", DataType: "float"}, float32(1.1), "'1.1'"},
		{"double", mysql.ColumnInfo{Name: "c", DataType: "double"}, float64(2.5), "2.5"},
		{"string with quote", mysql.ColumnInfo{Name: "c", DataType: "varchar"}, "O'Brien", "'O\\'Brien'"},
		{"bytes", mysql.ColumnInfo{Name: "c", DataType: "blob"}, []byte("a\nb"), "'a\\nb'"},
		{"datetime string", mysql.ColumnInfo{Name: "c", DataType: "datetime"}, "2024-03-01 10:00:00", "'2024-03-01 10:00:00'"},
		{"timestamp as instant", mysql.ColumnInfo{Name: "c", DataType: "timestamp"}, "2024-01-01 00:00:00", "FROM_UNIXTIME(1704067200)"},
		{"timestamp with fraction", mysql.ColumnInfo{Name: "c", DataType: "timestamp"}, "2024-01-01 00:00:00.250000", "FROM_UNIXTIME(1704067200.250000)"},
		{"timestamp as time.Time", mysql.ColumnInfo{Name: "c", DataType: "timestamp"},
			time.Date(2024, 1, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600)), "FROM_UNIXTIME(1704067200)"},
		{"zero timestamp", mysql.ColumnInfo{Name: "c", DataType: "timestamp"}, "0000-00-00 00:00:00", "'0000-00-00 00:00:00'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeValue(tt.col, tt.v)
			if err != nil {
				t.Fatalf("encodeValue() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("encodeValue() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSplitRows_PairsUpdateImages(t *testing.T) {
	rows := [][]any{
		{int32(1), "a", nil}, {int32(1), "b", nil},
		{int32(2), "c", nil}, {int32(2), "d", nil},
	}
	changes := splitRows(changeUpdate, ordersTable(), rows)
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if changes[1].before[1] != "c" || changes[1].after[1] != "d" {
		t.Errorf("second pair = %v -> %v", changes[1].before, changes[1].after)
	}
	if !strings.Contains(changes[0].kind.String(), "update") {
		t.Errorf("kind = %s", changes[0].kind)
	}
}
