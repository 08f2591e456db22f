package validators

import "go.mongodb.org/mongo-driver/bson"

var PlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"project_id",
			"plot_number",
			"area",
			"area_unit",
			"price",
			"allocation_status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"project_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"plot_number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 20,
			},

			"area": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"area_unit": bson.M{
				"bsonType": "string",
				"enum": []string{
					"sqft",
					"sqyd",
					"sqm",
					"acre",
				},
			},

			"price": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"allocation_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"available",
					"on_hold",
					"booked",
					"sold",
				},
			},

			"archived": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
