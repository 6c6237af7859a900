package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "pbc_parties00000",
			"name": "parties",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "text_host_id",
					"name": "host_id",
					"type": "text",
					"required": true,
					"presentable": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "text_name",
					"name": "name",
					"type": "text",
					"required": true,
					"presentable": true,
					"min": 0,
					"max": 200,
					"pattern": ""
				},
				{
					"id": "text_description",
					"name": "description",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 2000,
					"pattern": ""
				},
				{
					"id": "text_location",
					"name": "location",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 500,
					"pattern": ""
				},
				{
					"id": "select_visibility",
					"name": "visibility",
					"type": "select",
					"required": false,
					"presentable": false,
					"maxSelect": 1,
					"values": ["public", "private"]
				},
				{
					"id": "number_max_guests",
					"name": "max_guest_count",
					"type": "number",
					"required": true,
					"presentable": false,
					"min": 1,
					"max": null,
					"onlyInt": true
				},
				{
					"id": "number_price",
					"name": "ticket_price",
					"type": "number",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": null,
					"onlyInt": false
				},
				{
					"id": "date_start_time",
					"name": "start_time",
					"type": "date",
					"required": false,
					"presentable": false,
					"min": "",
					"max": ""
				},
				{
					"id": "date_end_time",
					"name": "end_time",
					"type": "date",
					"required": false,
					"presentable": false,
					"min": "",
					"max": ""
				},
				{
					"id": "json_active_users",
					"name": "active_users",
					"type": "json",
					"required": false,
					"presentable": false,
					"maxSize": 1000000
				},
				{
					"id": "json_requests",
					"name": "guest_requests",
					"type": "json",
					"required": false,
					"presentable": false,
					"maxSize": 5000000
				},
				{
					"id": "bool_stats",
					"name": "stats_processed",
					"type": "bool",
					"required": false,
					"presentable": false
				},
				{
					"id": "date_stats_at",
					"name": "stats_processed_at",
					"type": "date",
					"required": false,
					"presentable": false,
					"min": "",
					"max": ""
				},
				{
					"id": "text_stats_error",
					"name": "stats_error",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "bool_canceled",
					"name": "canceled",
					"type": "bool",
					"required": false,
					"presentable": false
				},
				{
					"id": "number_version",
					"name": "version",
					"type": "number",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": null,
					"onlyInt": true
				},
				{
					"id": "autodate_created",
					"name": "created",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": false
				},
				{
					"id": "autodate_updated",
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE INDEX idx_parties_host ON parties (host_id)",
				"CREATE INDEX idx_parties_sweep ON parties (stats_processed, end_time)",
				"CREATE INDEX idx_parties_visibility ON parties (visibility, start_time)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("pbc_parties00000")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
