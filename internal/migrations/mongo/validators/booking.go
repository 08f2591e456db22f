package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"plot_id",
			"project_id",
			"hold_id",
			"broker_id",
			"customer",
			"booking_status",
			"payment_status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"plot_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"project_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"hold_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"broker_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"customer": bson.M{
				"bsonType": "object",
				"required": []string{"name", "email", "phone"},
				"properties": bson.M{
					"name": bson.M{
						"bsonType":  "string",
						"minLength": 2,
						"maxLength": 100,
					},
					"email": bson.M{
						"bsonType": "string",
					},
					"phone": bson.M{
						"bsonType": "string",
					},
				},
			},

			"booking_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"reserved",
					"on_hold",
					"confirmed",
					"completed",
					"cancelled",
				},
			},

			"payment_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"paid",
					"failed",
				},
			},

			"amount": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
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
