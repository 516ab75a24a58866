package odbcarrow

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
)

// Field metadata keys describing the source column of each Arrow field.
const (
	MetadataKeySQLType       = "sql.type"
	MetadataKeySQLTypeName   = "sql.type_name"
	MetadataKeyColumnSize    = "sql.column_size"
	MetadataKeyDecimalDigits = "sql.decimal_digits"
	MetadataKeyUnsigned      = "sql.unsigned"
)

// PlaceholderColumn is the single column of the schema used when a
// statement produced no result set.
const PlaceholderColumn = "result"

// maxDecimal128Precision is the widest precision Decimal128 can hold.
const maxDecimal128Precision = 38

var sqlTypeNames = map[int16]string{
	SQLUnknownType:   "UNKNOWN",
	SQLChar:          "CHAR",
	SQLNumeric:       "NUMERIC",
	SQLDecimal:       "DECIMAL",
	SQLInteger:       "INTEGER",
	SQLSmallint:      "SMALLINT",
	SQLFloat:         "FLOAT",
	SQLReal:          "REAL",
	SQLDouble:        "DOUBLE",
	SQLDatetime:      "DATETIME",
	SQLVarchar:       "VARCHAR",
	SQLTypeDate:      "DATE",
	SQLTypeTime:      "TIME",
	SQLTypeTimestamp: "TIMESTAMP",
	SQLLongVarchar:   "LONGVARCHAR",
	SQLBinary:        "BINARY",
	SQLVarbinary:     "VARBINARY",
	SQLLongVarbinary: "LONGVARBINARY",
	SQLBigint:        "BIGINT",
	SQLTinyint:       "TINYINT",
	SQLBit:           "BIT",
	SQLWChar:         "WCHAR",
	SQLWVarchar:      "WVARCHAR",
	SQLWLongVarchar:  "WLONGVARCHAR",
	SQLGUID:          "GUID",
}

// SQLTypeName returns the ODBC name of an SQL data type code.
func SQLTypeName(t int16) string {
	if name, ok := sqlTypeNames[t]; ok {
		return name
	}
	return "SQL_TYPE(" + strconv.Itoa(int(t)) + ")"
}

var unsignedTypes = map[int16]arrow.DataType{
	SQLTinyint:  arrow.PrimitiveTypes.Uint8,
	SQLSmallint: arrow.PrimitiveTypes.Uint16,
	SQLInteger:  arrow.PrimitiveTypes.Uint32,
	SQLBigint:   arrow.PrimitiveTypes.Uint64,
}

// arrowType maps a column description onto the Arrow type of its field.
func arrowType(col ColumnDesc) arrow.DataType {
	if dt, ok := unsignedTypes[col.SQLType]; ok && col.Unsigned {
		return dt
	}

	switch col.SQLType {
	case SQLTinyint:
		return arrow.PrimitiveTypes.Int8
	case SQLSmallint:
		return arrow.PrimitiveTypes.Int16
	case SQLInteger:
		return arrow.PrimitiveTypes.Int32
	case SQLBigint:
		return arrow.PrimitiveTypes.Int64
	case SQLReal:
		return arrow.PrimitiveTypes.Float32
	case SQLFloat, SQLDouble:
		return arrow.PrimitiveTypes.Float64
	case SQLBit:
		return arrow.FixedWidthTypes.Boolean
	case SQLDecimal, SQLNumeric:
		if col.Size == 0 || col.Size > maxDecimal128Precision || col.DecimalDigits < 0 || uint64(col.DecimalDigits) > col.Size {
			return arrow.BinaryTypes.String
		}
		return &arrow.Decimal128Type{Precision: int32(col.Size), Scale: int32(col.DecimalDigits)}
	case SQLTypeDate, SQLDatetime:
		return arrow.FixedWidthTypes.Date32
	case SQLTypeTime:
		return arrow.FixedWidthTypes.Time64us
	case SQLTypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case SQLBinary, SQLVarbinary, SQLLongVarbinary:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// fieldFromColumn builds the Arrow field for a result column. Columns whose
// nullability is unknown are treated as nullable.
func fieldFromColumn(col ColumnDesc) arrow.Field {
	kv := map[string]string{
		MetadataKeySQLType:       strconv.Itoa(int(col.SQLType)),
		MetadataKeySQLTypeName:   SQLTypeName(col.SQLType),
		MetadataKeyColumnSize:    strconv.FormatUint(col.Size, 10),
		MetadataKeyDecimalDigits: strconv.Itoa(int(col.DecimalDigits)),
	}
	if col.Unsigned {
		kv[MetadataKeyUnsigned] = "true"
	}
	md := arrow.MetadataFrom(kv)

	return arrow.Field{
		Name:     col.Name,
		Type:     arrowType(col),
		Nullable: col.Nullable != NoNulls,
		Metadata: md,
	}
}

// SchemaFromColumns infers the Arrow schema of a result set.
func SchemaFromColumns(columns []ColumnDesc) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		fields[i] = fieldFromColumn(col)
	}
	return arrow.NewSchema(fields, nil)
}

// PlaceholderSchema is the schema reported for statements without a result
// set: one nullable string column named "result".
func PlaceholderSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: PlaceholderColumn, Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
}
